package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Placeholder is the token in the DSN template replaced by the tenant key.
const Placeholder = "{tenant}"

var (
	ErrNoTemplate = errors.New("tenant database template is not configured")
	ErrEmptyKey   = errors.New("tenant key is empty")
)

// OpenFunc opens and verifies a database handle for a DSN.
type OpenFunc func(ctx context.Context, dsn string) (*sql.DB, error)

// OpenPostgres is the production OpenFunc backed by lib/pq.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		slog.Info(err.Error())
		return nil, err
	}
	return db, nil
}

// Registry caches one open database handle per tenant key for the
// lifetime of the process. Handles are created lazily on first access;
// concurrent first requests for the same key open exactly one handle.
type Registry struct {
	template string
	open     OpenFunc

	group   singleflight.Group
	mu      sync.RWMutex
	handles map[string]*sql.DB
}

func NewRegistry(template string, open OpenFunc) *Registry {
	if open == nil {
		open = OpenPostgres
	}
	return &Registry{
		template: template,
		open:     open,
		handles:  make(map[string]*sql.DB),
	}
}

// Get returns the handle for key, opening it on first access. Open
// failures are propagated without retry; nothing is cached on failure.
func (r *Registry) Get(ctx context.Context, key string) (*sql.DB, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	r.mu.RLock()
	db, ok := r.handles[key]
	r.mu.RUnlock()
	if ok {
		return db, nil
	}

	if r.template == "" {
		return nil, ErrNoTemplate
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		db, ok := r.handles[key]
		r.mu.RUnlock()
		if ok {
			return db, nil
		}

		dsn := strings.Replace(r.template, Placeholder, key, 1)
		db, err := r.open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open tenant %q: %w", key, err)
		}

		r.mu.Lock()
		r.handles[key] = db
		r.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// Len reports the number of cached handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Close closes every cached handle. Only meant for process shutdown;
// the registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, db := range r.handles {
		if err := db.Close(); err != nil {
			slog.Info(err.Error())
		}
		delete(r.handles, key)
	}
}
