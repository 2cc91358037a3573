package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/transfer"
)

type stubScheduleRepo struct {
	byID    map[int64]*models.ScheduledPost
	created *models.ScheduledPost

	setActiveOK bool
	deleteOK    bool
	activated   *time.Time
}

func (s *stubScheduleRepo) Create(ctx context.Context, sp *models.ScheduledPost) (int64, error) {
	s.created = sp
	return 42, nil
}

func (s *stubScheduleRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	return s.byID[id], nil
}

func (s *stubScheduleRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (s *stubScheduleRepo) ListActive(ctx context.Context) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (s *stubScheduleRepo) SetActive(ctx context.Context, userID, id int64, active bool, nextPostAt *time.Time) (bool, error) {
	s.activated = nextPostAt
	return s.setActiveOK, nil
}

func (s *stubScheduleRepo) SetNextPostAt(ctx context.Context, id int64, nextPostAt time.Time) error {
	return nil
}

func (s *stubScheduleRepo) MarkPosted(ctx context.Context, id int64, postedAt, nextPostAt time.Time) error {
	return nil
}

func (s *stubScheduleRepo) Delete(ctx context.Context, userID, id int64) (bool, error) {
	return s.deleteOK, nil
}

type stubTenantStores struct {
	schedules *stubScheduleRepo
}

func (s *stubTenantStores) Schedules(ctx context.Context, userID int64) (repository.ScheduleRepository, error) {
	return s.schedules, nil
}

func (s *stubTenantStores) History(ctx context.Context, userID int64) (repository.PostingHistoryRepository, error) {
	return nil, errors.New("not used")
}

func newTestScheduleService(repo *stubScheduleRepo) *scheduleService {
	s := NewScheduleService(&stubTenantStores{schedules: repo}, time.UTC).(*scheduleService)
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	}
	return s
}

func TestCreateSchedule(t *testing.T) {
	repo := &stubScheduleRepo{}
	s := newTestScheduleService(repo)

	id, err := s.Create(context.Background(), 1, &transfer.ScheduleCreation{
		Topic:    "kubernetes",
		CronExpr: "0 9 * * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 42 {
		t.Errorf("unexpected id: %d", id)
	}

	sp := repo.created
	if sp == nil {
		t.Fatal("schedule was not stored")
	}
	if !sp.IsActive {
		t.Error("new schedule should be active")
	}
	if !sp.NextPostAt.Valid {
		t.Fatal("next run should be computed on creation")
	}
	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if !sp.NextPostAt.Time.Equal(want) {
		t.Errorf("next run = %v, want %v", sp.NextPostAt.Time, want)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	s := newTestScheduleService(&stubScheduleRepo{})

	_, err := s.Create(context.Background(), 1, &transfer.ScheduleCreation{
		Topic:    "",
		CronExpr: "0 9 * * *",
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("empty topic: expected ErrInvalidSchedule, got %v", err)
	}

	_, err = s.Create(context.Background(), 1, &transfer.ScheduleCreation{
		Topic:    "kubernetes",
		CronExpr: "every other tuesday",
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("bad cron: expected ErrInvalidSchedule, got %v", err)
	}
}

func TestSetActiveRecomputesNextRun(t *testing.T) {
	repo := &stubScheduleRepo{
		byID: map[int64]*models.ScheduledPost{
			7: {ID: 7, UserID: 1, CronExpr: "0 9 * * *"},
		},
		setActiveOK: true,
	}
	s := newTestScheduleService(repo)

	if err := s.SetActive(context.Background(), 1, 7, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.activated == nil {
		t.Fatal("activation should pass a recomputed next run")
	}
	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if !repo.activated.Equal(want) {
		t.Errorf("next run = %v, want %v", repo.activated, want)
	}
}

func TestSetActiveUnknownSchedule(t *testing.T) {
	repo := &stubScheduleRepo{byID: map[int64]*models.ScheduledPost{}}
	s := newTestScheduleService(repo)

	if err := s.SetActive(context.Background(), 1, 99, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetActiveWrongOwner(t *testing.T) {
	repo := &stubScheduleRepo{
		byID: map[int64]*models.ScheduledPost{
			7: {ID: 7, UserID: 2, CronExpr: "0 9 * * *"},
		},
	}
	s := newTestScheduleService(repo)

	if err := s.SetActive(context.Background(), 1, 7, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteScheduleMissing(t *testing.T) {
	repo := &stubScheduleRepo{deleteOK: false}
	s := newTestScheduleService(repo)

	if err := s.Delete(context.Background(), 1, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
