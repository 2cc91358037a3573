package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/models"
	"github.com/sociantra/sociantra/internal/repository"
	"github.com/sociantra/sociantra/internal/transfer"
	"github.com/sociantra/sociantra/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

type LinkedinService interface {
	LinkedinCallback(ctx context.Context, code string, userID int64) error
	RefreshLinkedinToken(ctx context.Context, userID int64, refreshToken string) error
	Publish(ctx context.Context, acc *models.ConnectedAccount, content string, image []byte) (string, error)
}

type linkedinService struct {
	cfg     config.Config
	ca      repository.ConnectedAccountRepository
	baseURL string
	client  *http.Client
}

func NewLinkedinService(cfg config.Config, ca repository.ConnectedAccountRepository) LinkedinService {
	return &linkedinService{
		cfg:     cfg,
		ca:      ca,
		baseURL: "https://api.linkedin.com",
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *linkedinService) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.LinkedinClientID,
		ClientSecret: s.cfg.LinkedinClientSecret,
		RedirectURL:  s.cfg.LinkedinRedirectURI,
		Scopes:       []string{"openid", "profile", "email", "w_member_social"},
		Endpoint:     linkedin.Endpoint,
	}
}

func (s *linkedinService) LinkedinCallback(ctx context.Context, code string, userID int64) error {
	var err error

	if code == "" {
		err = errors.New("code or state is empty")
		slog.Info(err.Error())
		return err
	}

	if userID == 0 {
		err = errors.New("User not found")
		slog.Info(err.Error())
		return err
	}

	oauthCfg := s.oauthConfig()

	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	userInfo, err := s.getUserInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	refreshToken := encryptedAccessToken
	if token.RefreshToken != "" {
		refreshToken, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		// LinkedIn member tokens last 60 days.
		expiresAt = time.Now().Add(60 * 24 * time.Hour)
	}

	accountInfo := &models.ConnectedAccount{
		UserID:         userID,
		Platform:       models.PlatformLinkedin,
		AccountID:      userInfo.Sub,
		AccountName:    userInfo.Name,
		ProfilePicture: userInfo.Picture,
		AccessToken:    encryptedAccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: expiresAt,
	}

	return s.ca.Upsert(ctx, accountInfo)
}

func (s *linkedinService) getUserInfo(ctx context.Context, accessToken string) (*transfer.LinkedinUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from LinkedIn: %d", resp.StatusCode)
	}

	var userInfo transfer.LinkedinUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *linkedinService) RefreshLinkedinToken(ctx context.Context, userID int64, refreshToken string) error {

	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", decryptedRefreshToken)
	data.Set("client_id", s.cfg.LinkedinClientID)
	data.Set("client_secret", s.cfg.LinkedinClientSecret)

	resp, err := s.client.Post(
		"https://www.linkedin.com/oauth/v2/accessToken",
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken      string `json:"access_token"`
		ExpiresIn        int    `json:"expires_in"`
		RefreshToken     string `json:"refresh_token"`
		RefreshExpiresIn int    `json:"refresh_token_expires_in"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken := encryptedAccessToken
	if result.RefreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(result.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	account := models.ConnectedAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: GetExpiresAt(result.ExpiresIn),
	}

	return s.ca.SetToken(ctx, userID, refreshToken, &account)
}

// Publish shares content on LinkedIn for the given account and returns
// the remote post URN. When image bytes are present, the media is first
// registered and uploaded so the share can reference the asset.
func (s *linkedinService) Publish(ctx context.Context, acc *models.ConnectedAccount, content string, image []byte) (string, error) {

	accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	authorURN := "urn:li:person:" + acc.AccountID

	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": content},
		"shareMediaCategory": "NONE",
	}

	if image != nil {
		asset, err := s.uploadImage(ctx, accessToken, authorURN, image)
		if err != nil {
			return "", err
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]interface{}{
			{
				"status": "READY",
				"media":  asset,
				"title":  map[string]string{"text": "Generated Image"},
			},
		}
	}

	share := transfer.LinkedinShareRequest{
		Author:         authorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(share)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Info(fmt.Sprintf("LinkedIn share failed with status %d: %s", resp.StatusCode, respBody))
		return "", fmt.Errorf("%w: unexpected status code %d", ErrPublish, resp.StatusCode)
	}

	var result transfer.LinkedinShareResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}

	if result.ID == "" {
		return "", fmt.Errorf("%w: no post id returned from LinkedIn", ErrPublish)
	}

	return result.ID, nil
}

func (s *linkedinService) uploadImage(ctx context.Context, accessToken, ownerURN string, image []byte) (string, error) {
	registerPayload := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   ownerURN,
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}

	body, err := json.Marshal(registerPayload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v2/assets?action=registerUpload", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: register upload failed with status %d", ErrPublish, resp.StatusCode)
	}

	var register transfer.LinkedinRegisterUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&register); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}

	uploadURL := register.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL
	if uploadURL == "" || register.Value.Asset == "" {
		return "", fmt.Errorf("%w: incomplete register upload response", ErrPublish)
	}

	uploadReq, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Authorization", "Bearer "+accessToken)
	uploadReq.Header.Set("Content-Type", "image/jpeg")

	uploadResp, err := s.client.Do(uploadReq)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode != http.StatusOK && uploadResp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: image upload failed with status %d", ErrPublish, uploadResp.StatusCode)
	}

	return register.Value.Asset, nil
}
