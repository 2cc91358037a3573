package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/service"
)

type TokenRefreshJob struct {
	ca repository.ConnectedAccountRepository
	li service.LinkedinService
	ig service.InstagramService
}

func NewTokenRefreshJob(
	ca repository.ConnectedAccountRepository,
	li service.LinkedinService,
	ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		ca: ca,
		li: li,
		ig: ig,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.ca.ListByTimeInterval(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ConnectedAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			switch acc.Platform {
			case models.PlatformLinkedin:
				err := c.li.RefreshLinkedinToken(ctx, acc.UserID, acc.RefreshToken)
				if err != nil {
					slog.Info("Unable to refresh tokens for LinkedIn")
				}

			case models.PlatformInstagram:
				err := c.ig.RefreshInstagramToken(ctx, acc.UserID, acc.RefreshToken)
				if err != nil {
					slog.Info("Unable to refresh tokens for Instagram")
				}
			}
		}(acc)
	}

	wg.Wait()
}
