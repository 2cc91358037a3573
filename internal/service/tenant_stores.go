package service

import (
	"context"
	"log/slog"

	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/tenant"
)

// TenantStores resolves a user's repositories against their own
// database. Every per-user store goes through here so the handle
// lookup stays in one place.
type TenantStores interface {
	Schedules(ctx context.Context, userID int64) (repository.ScheduleRepository, error)
	History(ctx context.Context, userID int64) (repository.PostingHistoryRepository, error)
}

type tenantStores struct {
	u  repository.UserRepository
	tr *tenant.Registry
}

func NewTenantStores(u repository.UserRepository, tr *tenant.Registry) TenantStores {
	return &tenantStores{
		u:  u,
		tr: tr,
	}
}

func (s *tenantStores) handle(ctx context.Context, userID int64) (key string, err error) {
	user, isExist, err := s.u.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if !isExist || user.DBName == "" {
		slog.Info("user has no tenant database assigned")
		return "", ErrUnauthorized
	}

	return user.DBName, nil
}

func (s *tenantStores) Schedules(ctx context.Context, userID int64) (repository.ScheduleRepository, error) {
	key, err := s.handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	db, err := s.tr.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return repository.NewScheduleRepository(db), nil
}

func (s *tenantStores) History(ctx context.Context, userID int64) (repository.PostingHistoryRepository, error) {
	key, err := s.handle(ctx, userID)
	if err != nil {
		return nil, err
	}

	db, err := s.tr.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	return repository.NewPostingHistoryRepository(db), nil
}
