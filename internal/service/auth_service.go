package service

import (
	"context"
	"errors"
	"log/slog"

	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/tenant"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type AuthService interface {
	LoginCallback(ctx context.Context, code string) (err error, userID int64)
}

type authService struct {
	cfg config.Config
	u   repository.UserRepository
	sr  repository.SettingsRepository
	tr  *tenant.Registry
}

func NewAuthService(cfg config.Config, u repository.UserRepository, sr repository.SettingsRepository, tr *tenant.Registry) AuthService {
	return &authService{
		cfg: cfg,
		u:   u,
		sr:  sr,
		tr:  tr,
	}
}

func (s *authService) LoginCallback(ctx context.Context, code string) (err error, userID int64) {

	if code == "" {
		err = errors.New("code or state is empty")
		slog.Info(err.Error())
		return err, 0
	}

	oauth2Config := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err = errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return err, 0
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err, 0
	}

	client := oauth2Config.Client(ctx, token)

	userInfo, err := GetUserInfo(client)
	if err != nil {
		return err, 0
	}

	user, isExist, err := s.u.GetByEmail(ctx, userInfo.Email)
	if err != nil {
		return err, 0
	}

	if !isExist || user.GoogleID == "" {
		dbName := tenant.KeyFromEmail(userInfo.Email)

		userID, err = s.u.Create(ctx, nil, &models.User{
			GoogleID:       userInfo.ID,
			Email:          userInfo.Email,
			Name:           userInfo.Name,
			ProfilePicture: userInfo.Picture,
			DBName:         dbName,
		})
		if err != nil {
			slog.Info(err.Error())
			return err, 0
		}

		_, err = s.sr.Create(ctx, &models.Settings{
			UserID:   userID,
			Language: models.DefaultLanguage,
		})
		if err != nil {
			slog.Info(err.Error())
			return err, 0
		}

		// Warm the tenant handle so the first API call after signup
		// doesn't pay the connection cost.
		if _, err := s.tr.Get(ctx, dbName); err != nil {
			slog.Info(err.Error())
		}
	} else {
		userID = user.ID

		// Name and picture can change on the Google side, refresh them
		// on every login.
		user.GoogleID = userInfo.ID
		user.Name = userInfo.Name
		user.ProfilePicture = userInfo.Picture
		if err := s.u.Update(ctx, user); err != nil {
			slog.Info(err.Error())
		}
	}

	return nil, userID
}
