package job

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/service"
	"github.com/sociantra/sociantra/internal/transfer"
)

type fakeUserRepo struct {
	users []*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	return nil, false, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *sql.Tx, user *models.User) (int64, error) {
	return 0, nil
}

func (f *fakeUserRepo) ListWithTenants(ctx context.Context) ([]*models.User, error) {
	return f.users, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }
func (f *fakeUserRepo) Remove(ctx context.Context, id int64) error          { return nil }

type fakeAccountRepo struct {
	accounts []*models.ConnectedAccount
}

func (f *fakeAccountRepo) Create(ctx context.Context, tx *sql.Tx, ca *models.ConnectedAccount) (int64, error) {
	return 0, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) GetByUserPlatform(ctx context.Context, userID int64, platform string) (*models.ConnectedAccount, bool, error) {
	for _, acc := range f.accounts {
		if acc.UserID == userID && acc.Platform == platform {
			return acc, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	return f.accounts, nil
}

func (f *fakeAccountRepo) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.ConnectedAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	return false, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, userID int64, oldAccessToken string, ca *models.ConnectedAccount) error {
	return nil
}

func (f *fakeAccountRepo) Upsert(ctx context.Context, ca *models.ConnectedAccount) error { return nil }
func (f *fakeAccountRepo) Remove(ctx context.Context, id int64) error                    { return nil }

type fakeScheduleRepo struct {
	schedules []*models.ScheduledPost

	markPosted    []int64
	setNextPostAt []int64
}

func (f *fakeScheduleRepo) Create(ctx context.Context, sp *models.ScheduledPost) (int64, error) {
	return 0, nil
}

func (f *fakeScheduleRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return f.schedules, nil
}

func (f *fakeScheduleRepo) ListActive(ctx context.Context) ([]*models.ScheduledPost, error) {
	return f.schedules, nil
}

func (f *fakeScheduleRepo) SetActive(ctx context.Context, userID, id int64, active bool, nextPostAt *time.Time) (bool, error) {
	return true, nil
}

func (f *fakeScheduleRepo) SetNextPostAt(ctx context.Context, id int64, nextPostAt time.Time) error {
	f.setNextPostAt = append(f.setNextPostAt, id)
	return nil
}

func (f *fakeScheduleRepo) MarkPosted(ctx context.Context, id int64, postedAt, nextPostAt time.Time) error {
	f.markPosted = append(f.markPosted, id)
	return nil
}

func (f *fakeScheduleRepo) Delete(ctx context.Context, userID, id int64) (bool, error) {
	return true, nil
}

type fakeStores struct {
	schedules *fakeScheduleRepo
}

func (f *fakeStores) Schedules(ctx context.Context, userID int64) (repository.ScheduleRepository, error) {
	return f.schedules, nil
}

func (f *fakeStores) History(ctx context.Context, userID int64) (repository.PostingHistoryRepository, error) {
	return nil, errors.New("not used")
}

type fakePublisher struct {
	generateErr error
	publishErr  error

	generated int
	published []string
	history   []*models.PostingHistory
}

func (f *fakePublisher) Generate(ctx context.Context, userID int64, topic, customText string, includeImage bool) (*transfer.GeneratedPost, error) {
	f.generated++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &transfer.GeneratedPost{Text: "generated " + topic, Hashtags: []string{"#go"}}, nil
}

func (f *fakePublisher) PublishTo(ctx context.Context, acc *models.ConnectedAccount, content string, image []byte) (string, string, error) {
	f.published = append(f.published, acc.Platform)
	if f.publishErr != nil {
		return "", "", f.publishErr
	}
	return "remote-1", "", nil
}

func (f *fakePublisher) Publish(ctx context.Context, req *service.PublishRequest) error {
	return nil
}

func (f *fakePublisher) RecordHistory(ctx context.Context, ph *models.PostingHistory) error {
	f.history = append(f.history, ph)
	return nil
}

func newTestRunner(schedules *fakeScheduleRepo, accounts *fakeAccountRepo, ps *fakePublisher, now time.Time) *ScheduleRunner {
	users := &fakeUserRepo{users: []*models.User{{ID: 1, DBName: "tenant_one"}}}
	r := NewScheduleRunner(users, accounts, &fakeStores{schedules: schedules}, ps, time.UTC)
	r.now = func() time.Time { return now }
	return r
}

func validAccount(platform string, now time.Time) *models.ConnectedAccount {
	return &models.ConnectedAccount{
		ID:             1,
		UserID:         1,
		Platform:       platform,
		AccountID:      "acct-1",
		AccessToken:    "token",
		TokenExpiresAt: now.Add(time.Hour),
	}
}

func dueSchedule(id int64, now time.Time) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:         id,
		UserID:     1,
		Topic:      "golang",
		CronExpr:   "0 9 * * *",
		IsActive:   true,
		NextPostAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}
}

func TestRunPublishesDueSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		validAccount(models.PlatformLinkedin, now),
		validAccount(models.PlatformWhatsapp, now),
	}}
	ps := &fakePublisher{}

	newTestRunner(schedules, accounts, ps, now).Run()

	if ps.generated != 1 {
		t.Errorf("expected one generation per tick, got %d", ps.generated)
	}
	if len(ps.published) != 2 {
		t.Fatalf("expected publish to both accounts, got %v", ps.published)
	}
	if len(schedules.markPosted) != 1 || schedules.markPosted[0] != 10 {
		t.Errorf("expected schedule 10 marked posted, got %v", schedules.markPosted)
	}
	if len(ps.history) != 2 {
		t.Errorf("expected a history row per account, got %d", len(ps.history))
	}
	for _, ph := range ps.history {
		if !ph.ScheduleID.Valid || ph.ScheduleID.Int64 != 10 {
			t.Errorf("history row missing schedule reference: %+v", ph)
		}
		if ph.ErrorMessage != "" {
			t.Errorf("unexpected error message: %q", ph.ErrorMessage)
		}
	}
}

func TestRunSkipsScheduleNotDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	sp := dueSchedule(10, now)
	sp.NextPostAt = sql.NullTime{Time: now.Add(time.Hour), Valid: true}

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{sp}}
	ps := &fakePublisher{}

	newTestRunner(schedules, &fakeAccountRepo{}, ps, now).Run()

	if ps.generated != 0 {
		t.Errorf("expected no generation, got %d", ps.generated)
	}
	if len(schedules.markPosted) != 0 || len(schedules.setNextPostAt) != 0 {
		t.Errorf("schedule should be untouched: %v %v", schedules.markPosted, schedules.setNextPostAt)
	}
}

func TestRunInitializesMissingNextPostAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	sp := dueSchedule(10, now)
	sp.NextPostAt = sql.NullTime{}

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{sp}}
	ps := &fakePublisher{}

	newTestRunner(schedules, &fakeAccountRepo{}, ps, now).Run()

	if ps.generated != 0 {
		t.Errorf("expected no generation on initialization, got %d", ps.generated)
	}
	if len(schedules.setNextPostAt) != 1 {
		t.Fatalf("expected next run to be initialized, got %v", schedules.setNextPostAt)
	}
}

func TestRunSkipsExpiredTokenAccount(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	expired := validAccount(models.PlatformLinkedin, now)
	expired.TokenExpiresAt = now.Add(-time.Hour)

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		expired,
		validAccount(models.PlatformWhatsapp, now),
	}}
	ps := &fakePublisher{}

	newTestRunner(schedules, accounts, ps, now).Run()

	if len(ps.published) != 1 || ps.published[0] != models.PlatformWhatsapp {
		t.Errorf("expected only the whatsapp account to publish, got %v", ps.published)
	}
	if len(ps.history) != 2 {
		t.Fatalf("expected a failure row plus a success row, got %d", len(ps.history))
	}
	if len(schedules.markPosted) != 1 {
		t.Errorf("one successful platform should still mark the schedule posted")
	}
}

func TestRunSkipsInactiveSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	sp := dueSchedule(10, now)
	sp.IsActive = false

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{sp}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		validAccount(models.PlatformWhatsapp, now),
	}}
	ps := &fakePublisher{}

	newTestRunner(schedules, accounts, ps, now).Run()

	if ps.generated != 0 || len(ps.published) != 0 {
		t.Errorf("inactive schedule must never execute: generated %d, published %v",
			ps.generated, ps.published)
	}
	if len(schedules.markPosted) != 0 || len(schedules.setNextPostAt) != 0 {
		t.Errorf("inactive schedule should be untouched: %v %v",
			schedules.markPosted, schedules.setNextPostAt)
	}
}

func TestRunSkipsGenerationWithoutAccounts(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	ps := &fakePublisher{}

	newTestRunner(schedules, &fakeAccountRepo{}, ps, now).Run()

	if ps.generated != 0 {
		t.Errorf("no connected accounts should mean no generation, got %d", ps.generated)
	}
	if len(ps.history) != 0 {
		t.Errorf("expected no history rows, got %d", len(ps.history))
	}
	if len(schedules.markPosted) != 0 || len(schedules.setNextPostAt) != 0 {
		t.Errorf("schedule should stay due untouched: %v %v",
			schedules.markPosted, schedules.setNextPostAt)
	}
}

func TestRunSkipsGenerationWhenAllTokensExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	expired := validAccount(models.PlatformLinkedin, now)
	expired.TokenExpiresAt = now.Add(-time.Hour)

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{expired}}
	ps := &fakePublisher{}

	newTestRunner(schedules, accounts, ps, now).Run()

	if ps.generated != 0 {
		t.Errorf("expired-only credentials should mean no generation, got %d", ps.generated)
	}
	if len(ps.history) != 0 {
		t.Errorf("a skipped tick should not pile up failure rows, got %d", len(ps.history))
	}
	if len(schedules.markPosted) != 0 || len(schedules.setNextPostAt) != 0 {
		t.Errorf("schedule should stay due untouched: %v %v",
			schedules.markPosted, schedules.setNextPostAt)
	}
}

func TestRunRetriesGenerationFailureNextTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		validAccount(models.PlatformWhatsapp, now),
	}}
	ps := &fakePublisher{generateErr: errors.New("model unavailable")}

	newTestRunner(schedules, accounts, ps, now).Run()

	if len(ps.published) != 0 {
		t.Errorf("expected no publishing, got %v", ps.published)
	}
	if len(schedules.setNextPostAt) != 0 || len(schedules.markPosted) != 0 {
		t.Errorf("failed schedule must stay due for the next tick: %v %v",
			schedules.setNextPostAt, schedules.markPosted)
	}
	if len(ps.history) != 1 || ps.history[0].ErrorMessage == "" {
		t.Errorf("expected a failure history row, got %+v", ps.history)
	}
}

func TestRunRetriesPublishFailureNextTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{dueSchedule(10, now)}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		validAccount(models.PlatformLinkedin, now),
	}}
	ps := &fakePublisher{publishErr: errors.New("upstream 500")}

	newTestRunner(schedules, accounts, ps, now).Run()

	if len(schedules.setNextPostAt) != 0 || len(schedules.markPosted) != 0 {
		t.Errorf("failed schedule must stay due for the next tick: %v %v",
			schedules.setNextPostAt, schedules.markPosted)
	}
	if len(ps.history) != 1 || ps.history[0].ErrorMessage == "" {
		t.Errorf("expected a failure history row, got %+v", ps.history)
	}
}

func TestRunIsolatesBrokenSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 30, 0, time.UTC)
	broken := dueSchedule(10, now)
	broken.CronExpr = "not a cron expression"
	healthy := dueSchedule(11, now)

	schedules := &fakeScheduleRepo{schedules: []*models.ScheduledPost{broken, healthy}}
	accounts := &fakeAccountRepo{accounts: []*models.ConnectedAccount{
		validAccount(models.PlatformWhatsapp, now),
	}}
	ps := &fakePublisher{}

	newTestRunner(schedules, accounts, ps, now).Run()

	if len(schedules.markPosted) != 1 || schedules.markPosted[0] != 11 {
		t.Errorf("healthy schedule should still run, got %v", schedules.markPosted)
	}
}
