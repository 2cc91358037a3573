package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/transfer"
)

type WhatsappService interface {
	SendMessage(ctx context.Context, to, text string) (string, error)
	VerifyWebhook(mode, token, challenge string) (string, error)
	HandleWebhookEvent(ctx context.Context, event *transfer.WhatsappWebhookEvent) error
}

type whatsappService struct {
	cfg     config.Config
	baseURL string
	client  *http.Client
}

func NewWhatsappService(cfg config.Config) WhatsappService {
	return &whatsappService{
		cfg:     cfg,
		baseURL: "https://graph.facebook.com/v18.0",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage delivers a text message through the Cloud API and
// returns the message id.
func (s *whatsappService) SendMessage(ctx context.Context, to, text string) (string, error) {
	var err error

	if s.cfg.WhatsappAccessToken == "" || s.cfg.WhatsappPhoneNumberID == "" {
		err = errors.New("WhatsApp credentials not configured")
		slog.Info(err.Error())
		return "", err
	}

	payload := transfer.WhatsappSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &transfer.WhatsappText{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.cfg.WhatsappPhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.WhatsappAccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Info(fmt.Sprintf("WhatsApp send failed with status %d: %s", resp.StatusCode, respBody))
		return "", fmt.Errorf("%w: unexpected status code %d", ErrPublish, resp.StatusCode)
	}

	var result transfer.WhatsappSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("%w: %v", ErrPublish, err)
	}

	if result.Error != nil {
		slog.Info(result.Error.Message)
		return "", fmt.Errorf("%w: %s", ErrPublish, result.Error.Message)
	}

	if len(result.Messages) == 0 {
		return "", fmt.Errorf("%w: no message id returned from WhatsApp", ErrPublish)
	}

	return result.Messages[0].ID, nil
}

// VerifyWebhook answers Meta's subscription handshake. The challenge
// is echoed back only when mode and verify token both match.
func (s *whatsappService) VerifyWebhook(mode, token, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.WhatsappVerifyToken)) != 1 {
		return "", ErrUnauthorized
	}
	return challenge, nil
}

func (s *whatsappService) HandleWebhookEvent(ctx context.Context, event *transfer.WhatsappWebhookEvent) error {
	if event.Object != "whatsapp_business_account" {
		return nil
	}

	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				s.handleMessage(ctx, &msg)
			}
			for _, status := range change.Value.Statuses {
				slog.Info(fmt.Sprintf("message %s status %s", status.ID, status.Status))
			}
		}
	}

	return nil
}

func (s *whatsappService) handleMessage(ctx context.Context, msg *transfer.WhatsappMessage) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return
		}
		// Echo an acknowledgement so senders know the number is a bot.
		_, err := s.SendMessage(ctx, msg.From, "Thanks for your message. This number is managed by Sociantra.")
		if err != nil {
			slog.Info(err.Error())
		}
	case "reaction":
		if msg.Reaction != nil {
			slog.Info(fmt.Sprintf("reaction %s on message %s", msg.Reaction.Emoji, msg.Reaction.MessageID))
		}
	case "button":
		if msg.Button != nil {
			slog.Info(fmt.Sprintf("button reply %q from %s", msg.Button.Payload, msg.From))
			s.acknowledge(ctx, msg.From, msg.Button.Text)
		}
	case "interactive":
		if msg.Interactive == nil {
			return
		}
		switch {
		case msg.Interactive.ButtonReply != nil:
			slog.Info(fmt.Sprintf("interactive button %s from %s", msg.Interactive.ButtonReply.ID, msg.From))
			s.acknowledge(ctx, msg.From, msg.Interactive.ButtonReply.Title)
		case msg.Interactive.ListReply != nil:
			slog.Info(fmt.Sprintf("interactive list choice %s from %s", msg.Interactive.ListReply.ID, msg.From))
			s.acknowledge(ctx, msg.From, msg.Interactive.ListReply.Title)
		}
	default:
		slog.Info(fmt.Sprintf("unhandled message type %s from %s", msg.Type, msg.From))
	}
}

func (s *whatsappService) acknowledge(ctx context.Context, to, choice string) {
	reply := "Got it."
	if choice != "" {
		reply = fmt.Sprintf("Got it, you picked %q.", choice)
	}
	if _, err := s.SendMessage(ctx, to, reply); err != nil {
		slog.Info(err.Error())
	}
}
