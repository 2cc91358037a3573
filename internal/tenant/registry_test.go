package tenant

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// stubConn is the minimal driver.Conn needed to build distinct *sql.DB
// values without touching a real database.
type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

type stubConnector struct{}

func (stubConnector) Connect(context.Context) (driver.Conn, error) { return stubConn{}, nil }
func (stubConnector) Driver() driver.Driver                        { return nil }

func newStubDB() *sql.DB {
	return sql.OpenDB(stubConnector{})
}

// countingOpen records every DSN it was asked to open.
type countingOpen struct {
	mu    sync.Mutex
	dsns  []string
	calls int32
	err   error
}

func (o *countingOpen) fn(_ context.Context, dsn string) (*sql.DB, error) {
	atomic.AddInt32(&o.calls, 1)
	o.mu.Lock()
	o.dsns = append(o.dsns, dsn)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	return newStubDB(), nil
}

func TestRegistry_GetReusesHandle(t *testing.T) {
	open := &countingOpen{}
	reg := NewRegistry("postgres://localhost/{tenant}?sslmode=disable", open.fn)

	first, err := reg.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := reg.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first != second {
		t.Error("expected the cached handle on second access")
	}
	if open.calls != 1 {
		t.Errorf("open called %d times, want 1", open.calls)
	}
	if open.dsns[0] != "postgres://localhost/alice?sslmode=disable" {
		t.Errorf("unexpected dsn %q", open.dsns[0])
	}
}

func TestRegistry_DistinctTenantsDistinctHandles(t *testing.T) {
	open := &countingOpen{}
	reg := NewRegistry("postgres://localhost/{tenant}", open.fn)

	a, _ := reg.Get(context.Background(), "alice")
	b, _ := reg.Get(context.Background(), "bob")
	if a == b {
		t.Error("tenants must not share handles")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistry_ConcurrentFirstAccessOpensOnce(t *testing.T) {
	open := &countingOpen{}
	reg := NewRegistry("postgres://localhost/{tenant}", open.fn)

	const n = 32
	handles := make([]*sql.DB, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := reg.Get(context.Background(), "carol")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			handles[i] = db
		}(i)
	}
	wg.Wait()

	if open.calls != 1 {
		t.Fatalf("open called %d times, want 1", open.calls)
	}
	for i := 1; i < n; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
}

func TestRegistry_MissingTemplate(t *testing.T) {
	open := &countingOpen{}
	reg := NewRegistry("", open.fn)

	if _, err := reg.Get(context.Background(), "alice"); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("err = %v, want ErrNoTemplate", err)
	}
	if open.calls != 0 {
		t.Error("open must not be called without a template")
	}
}

func TestRegistry_EmptyKey(t *testing.T) {
	reg := NewRegistry("postgres://localhost/{tenant}", (&countingOpen{}).fn)
	if _, err := reg.Get(context.Background(), ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("err = %v, want ErrEmptyKey", err)
	}
}

func TestRegistry_OpenFailureNotCached(t *testing.T) {
	open := &countingOpen{err: errors.New("connection refused")}
	reg := NewRegistry("postgres://localhost/{tenant}", open.fn)

	if _, err := reg.Get(context.Background(), "dave"); err == nil {
		t.Fatal("expected open error")
	}
	if reg.Len() != 0 {
		t.Error("failed open must not leave a cached handle")
	}

	// Next attempt reaches the opener again.
	open.err = nil
	if _, err := reg.Get(context.Background(), "dave"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if open.calls != 2 {
		t.Errorf("open called %d times, want 2", open.calls)
	}
}

func TestKeyFromEmail(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "alice"},
		{"Bob.Smith+tag@example.com", "bob_smith_tag"},
		{"42jane@example.com", "t_42jane"},
		{"no-at-sign", "no_at_sign"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := KeyFromEmail(tc.email); got != tc.want {
			t.Errorf("KeyFromEmail(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}
