package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/transfer"
)

type PostService interface {
	PreparePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (time.Duration, error)
}

type postService struct {
	ca repository.ConnectedAccountRepository
}

func NewPostService(ca repository.ConnectedAccountRepository) PostService {
	return &postService{
		ca: ca,
	}
}

// PreparePost validates a one-off post request and returns how long
// to hold it in the queue before publishing.
func (s *postService) PreparePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (time.Duration, error) {
	var err error

	if pc == nil {
		err = errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}

	if pc.Topic == "" && pc.CustomText == "" {
		err = errors.New("topic and custom text cannot both be empty")
		slog.Info(err.Error())
		return 0, err
	}

	switch pc.Platform {
	case models.PlatformLinkedin, models.PlatformInstagram, models.PlatformWhatsapp:
	default:
		err = errors.New("unknown platform")
		slog.Info(err.Error())
		return 0, err
	}

	_, isConnected, err := s.ca.GetByUserPlatform(ctx, userID, pc.Platform)
	if err != nil {
		return 0, err
	}
	if !isConnected {
		err = errors.New("platform is not connected")
		slog.Info(err.Error())
		return 0, ErrNotFound
	}

	var delay time.Duration
	if pc.ScheduledAt != "" {
		scheduledTime, err := time.Parse("2006-01-02T15:04", pc.ScheduledAt)
		if err != nil {
			slog.Error(err.Error())
			return 0, errors.New("invalid scheduled time format")
		}
		delay = time.Until(scheduledTime)
		if delay < 0 {
			delay = 0
		}
	}

	return delay, nil
}
