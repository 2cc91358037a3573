package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/transfer"
	"github.com/sociantra/sociantra/pkg/utils"
)

type ScheduleService interface {
	Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	SetActive(ctx context.Context, userID, scheduleID int64, active bool) error
	Delete(ctx context.Context, userID, scheduleID int64) error
	History(ctx context.Context, userID int64) ([]*models.PostingHistory, error)
}

type scheduleService struct {
	stores TenantStores
	loc    *time.Location
	now    func() time.Time
}

func NewScheduleService(stores TenantStores, loc *time.Location) ScheduleService {
	return &scheduleService{
		stores: stores,
		loc:    loc,
		now:    time.Now,
	}
}

func (s *scheduleService) Create(ctx context.Context, userID int64, sc *transfer.ScheduleCreation) (int64, error) {
	var err error

	if sc.Topic == "" {
		err = errors.New("topic is empty")
		slog.Info(err.Error())
		return 0, ErrInvalidSchedule
	}

	if err = utils.ValidateCron(sc.CronExpr); err != nil {
		slog.Info(err.Error())
		return 0, ErrInvalidSchedule
	}

	nextRun, err := utils.NextRun(sc.CronExpr, s.now().UTC(), s.loc)
	if err != nil {
		slog.Info(err.Error())
		return 0, ErrInvalidSchedule
	}

	repo, err := s.stores.Schedules(ctx, userID)
	if err != nil {
		return 0, err
	}

	sp := &models.ScheduledPost{
		UserID:       userID,
		Topic:        sc.Topic,
		CronExpr:     sc.CronExpr,
		IncludeImage: sc.IncludeImage,
		IsActive:     true,
		NextPostAt:   sql.NullTime{Time: nextRun, Valid: true},
	}
	if sc.CustomText != "" {
		sp.CustomText = sql.NullString{String: sc.CustomText, Valid: true}
	}

	return repo.Create(ctx, sp)
}

func (s *scheduleService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	repo, err := s.stores.Schedules(ctx, userID)
	if err != nil {
		return nil, err
	}

	return repo.ListByUserID(ctx, userID)
}

// SetActive flips a schedule on or off. Reactivation recomputes the
// next run so a schedule paused for a week doesn't fire immediately
// for every missed slot.
func (s *scheduleService) SetActive(ctx context.Context, userID, scheduleID int64, active bool) error {
	repo, err := s.stores.Schedules(ctx, userID)
	if err != nil {
		return err
	}

	var nextPostAt *time.Time
	if active {
		schedule, err := repo.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if schedule == nil || schedule.UserID != userID {
			return ErrNotFound
		}

		nextRun, err := utils.NextRun(schedule.CronExpr, s.now().UTC(), s.loc)
		if err != nil {
			slog.Info(err.Error())
			return ErrInvalidSchedule
		}
		nextPostAt = &nextRun
	}

	ok, err := repo.SetActive(ctx, userID, scheduleID, active, nextPostAt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	return nil
}

func (s *scheduleService) Delete(ctx context.Context, userID, scheduleID int64) error {
	repo, err := s.stores.Schedules(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := repo.Delete(ctx, userID, scheduleID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	return nil
}

func (s *scheduleService) History(ctx context.Context, userID int64) ([]*models.PostingHistory, error) {
	repo, err := s.stores.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	return repo.ListByUserID(ctx, userID)
}
