package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/h2non/filetype"
	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PublishRequest describes a single post to put on one platform.
type PublishRequest struct {
	UserID       int64
	ScheduleID   sql.NullInt64
	Topic        string
	CustomText   string
	Platform     string
	IncludeImage bool
}

type PublishService interface {
	Generate(ctx context.Context, userID int64, topic, customText string, includeImage bool) (*transfer.GeneratedPost, error)
	PublishTo(ctx context.Context, acc *models.ConnectedAccount, content string, image []byte) (remoteID, imageURL string, err error)
	Publish(ctx context.Context, req *PublishRequest) error
	RecordHistory(ctx context.Context, ph *models.PostingHistory) error
}

type publishService struct {
	ca     repository.ConnectedAccountRepository
	sr     repository.SettingsRepository
	ai     AIService
	li     LinkedinService
	wa     WhatsappService
	ig     InstagramService
	r2     *R2Service
	stores TenantStores
	now    func() time.Time
}

func NewPublishService(
	ca repository.ConnectedAccountRepository,
	sr repository.SettingsRepository,
	ai AIService,
	li LinkedinService,
	wa WhatsappService,
	ig InstagramService,
	r2 *R2Service,
	stores TenantStores) PublishService {
	return &publishService{
		ca:     ca,
		sr:     sr,
		ai:     ai,
		li:     li,
		wa:     wa,
		ig:     ig,
		r2:     r2,
		stores: stores,
		now:    time.Now,
	}
}

// Generate produces the post body for a topic. Custom text bypasses
// the model entirely, the image is generated either way when asked
// for.
func (s *publishService) Generate(ctx context.Context, userID int64, topic, customText string, includeImage bool) (*transfer.GeneratedPost, error) {
	var post *transfer.GeneratedPost

	if customText != "" {
		post = &transfer.GeneratedPost{Text: customText}
	} else {
		language := models.DefaultLanguage
		settings, isExist, err := s.sr.GetByUserID(ctx, userID)
		if err == nil && isExist && settings.Language != "" {
			language = settings.Language
		}

		post, err = s.ai.GeneratePost(ctx, topic, language)
		if err != nil {
			return nil, err
		}
	}

	if includeImage {
		image, _, err := s.ai.GenerateImage(ctx, topic)
		if err != nil {
			// A missing illustration shouldn't block the text post.
			slog.Info(err.Error())
		} else {
			post.Image = image
		}
	}

	return post, nil
}

// PublishTo puts composed content on the account's platform and
// returns the remote post id. Instagram can only reference hosted
// media, so image bytes are first uploaded to R2 and passed by URL.
func (s *publishService) PublishTo(ctx context.Context, acc *models.ConnectedAccount, content string, image []byte) (remoteID, imageURL string, err error) {
	switch acc.Platform {
	case models.PlatformLinkedin:
		remoteID, err = s.li.Publish(ctx, acc, content, image)
		return remoteID, "", err

	case models.PlatformWhatsapp:
		remoteID, err = s.wa.SendMessage(ctx, acc.AccountID, content)
		return remoteID, "", err

	case models.PlatformInstagram:
		if image != nil {
			imageURL, err = s.hostImage(ctx, image)
			if err != nil {
				return "", "", err
			}
		}
		remoteID, err = s.ig.Publish(ctx, acc, content, imageURL)
		return remoteID, imageURL, err

	default:
		return "", "", fmt.Errorf("%w: unknown platform %s", ErrPublish, acc.Platform)
	}
}

func (s *publishService) hostImage(ctx context.Context, image []byte) (string, error) {
	fileType, err := filetype.Match(image)
	if err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("generated/%s.%s", id, fileType.Extension)

	if err := s.r2.UploadToR2(ctx, key, image, fileType.MIME.Value); err != nil {
		return "", err
	}

	return s.r2.ObjectURL(key), nil
}

// Publish runs the whole pipeline for one platform and records the
// outcome in the user's posting history, error rows included.
func (s *publishService) Publish(ctx context.Context, req *PublishRequest) error {

	acc, isExist, err := s.ca.GetByUserPlatform(ctx, req.UserID, req.Platform)
	if err != nil {
		return err
	}
	if !isExist {
		slog.Info(fmt.Sprintf("no %s account connected for user %d", req.Platform, req.UserID))
		return ErrNotFound
	}

	if req.Platform != models.PlatformWhatsapp && !acc.TokenValid(s.now()) {
		err = fmt.Errorf("%w: access token expired for %s", ErrPublish, req.Platform)
		s.record(ctx, req, "", "", "", err)
		return err
	}

	post, err := s.Generate(ctx, req.UserID, req.Topic, req.CustomText, req.IncludeImage)
	if err != nil {
		s.record(ctx, req, "", "", "", err)
		return err
	}

	content := ComposeContent(post.Text, post.Hashtags)

	remoteID, imageURL, err := s.PublishTo(ctx, acc, content, post.Image)
	s.record(ctx, req, content, remoteID, imageURL, err)

	return err
}

func (s *publishService) record(ctx context.Context, req *PublishRequest, content, remoteID, imageURL string, pubErr error) {
	ph := &models.PostingHistory{
		UserID:       req.UserID,
		ScheduleID:   req.ScheduleID,
		Platform:     req.Platform,
		RemotePostID: remoteID,
		Content:      content,
		ImageURL:     imageURL,
	}
	if pubErr != nil {
		ph.ErrorMessage = pubErr.Error()
	}

	if err := s.RecordHistory(ctx, ph); err != nil {
		slog.Info(err.Error())
	}
}

func (s *publishService) RecordHistory(ctx context.Context, ph *models.PostingHistory) error {
	repo, err := s.stores.History(ctx, ph.UserID)
	if err != nil {
		return err
	}

	_, err = repo.Create(ctx, ph)
	return err
}
