package service

import (
	"context"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
)

type SettingsService interface {
	GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, language, category string) error
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{
		sr: sr,
	}
}

func (s *settingsService) GetSettingsInfo(ctx context.Context, userID int64) (*models.Settings, error) {
	settings, isExist, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !isExist {
		// Accounts created before settings existed get defaults on read.
		return &models.Settings{
			UserID:   userID,
			Language: models.DefaultLanguage,
		}, nil
	}

	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID int64, language, category string) error {

	if language == "" {
		language = models.DefaultLanguage
	}

	_, isExist, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	settings := models.Settings{
		UserID:   userID,
		Language: language,
		Category: category,
	}

	if !isExist {
		_, err = s.sr.Create(ctx, &settings)
		return err
	}

	return s.sr.UpdateSettings(ctx, &settings, userID)
}
