package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/transfer"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com"
	geminiTextModel  = "gemini-2.0-flash"
	geminiImageModel = "gemini-3-pro-image-preview"
)

var (
	jsonBlockRe = regexp.MustCompile(`\{[\s\S]*\}`)
	hashtagRe   = regexp.MustCompile(`#\w+`)
)

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"de": "German",
	"pt": "Portuguese",
	"nl": "Dutch",
}

type AIService interface {
	GeneratePost(ctx context.Context, topic, language string) (*transfer.GeneratedPost, error)
	GenerateImage(ctx context.Context, topic string) ([]byte, string, error)
}

type aiService struct {
	cfg     config.Config
	baseURL string
	client  *http.Client
}

func NewAIService(cfg config.Config) AIService {
	return &aiService{
		cfg:     cfg,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: 3 * time.Minute},
	}
}

// GeneratePost asks Gemini for post text plus hashtags. The model is
// told to answer with a JSON object but doesn't always comply, so the
// response is parsed in two stages: first the JSON block, then a plain
// hashtag scan over the raw text.
func (s *aiService) GeneratePost(ctx context.Context, topic, language string) (*transfer.GeneratedPost, error) {

	languageName, ok := languageNames[language]
	if !ok {
		languageName = languageNames["en"]
	}

	prompt := fmt.Sprintf(`You are a professional social media content writer. Generate a highly engaging post about "%s".

Requirements:
- Length between 150-300 words
- Strong hook in the first line
- Add value with insights, tips, or thought-provoking questions
- End with a call-to-action or question to encourage engagement
- Professional but conversational tone
- Include 3-4 relevant emojis
- Write the entire post in %s only
- Suggest 3-5 relevant hashtags in %s

Format your response as JSON:
{
  "text": "the post content here",
  "hashtags": ["#hashtag1", "#hashtag2"]
}`, topic, languageName, languageName)

	raw, err := s.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	post := parseGeneratedPost(raw)
	if post.Text == "" {
		slog.Info("content generation produced empty text")
		return nil, ErrGeneration
	}

	return post, nil
}

func parseGeneratedPost(raw string) *transfer.GeneratedPost {
	var post transfer.GeneratedPost

	if block := jsonBlockRe.FindString(raw); block != "" {
		if err := json.Unmarshal([]byte(block), &post); err == nil && post.Text != "" {
			return &post
		}
	}

	hashtags := hashtagRe.FindAllString(raw, 5)
	text := strings.TrimSpace(jsonBlockRe.ReplaceAllString(raw, ""))
	if text == "" {
		text = strings.TrimSpace(raw)
	}

	return &transfer.GeneratedPost{
		Text:     text,
		Hashtags: hashtags,
	}
}

// ComposeContent joins the post body and its hashtags the way they
// should appear on the platform.
func ComposeContent(text string, hashtags []string) string {
	if len(hashtags) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(hashtags, " ")
}

// GenerateImage produces an illustration for the topic. A first call
// to the text model turns the topic into a detailed visual prompt, a
// second call to the image model renders it.
func (s *aiService) GenerateImage(ctx context.Context, topic string) ([]byte, string, error) {

	promptReq := fmt.Sprintf(`Create a detailed, professional image description for a social media post about "%s".
The image should be clean, modern, visually striking and suitable for a business audience.
Return only the image description, no JSON and no markdown.`, topic)

	imagePrompt, err := s.generateText(ctx, promptReq)
	if err != nil || strings.TrimSpace(imagePrompt) == "" {
		imagePrompt = fmt.Sprintf("Professional illustration related to %s, modern business style, clean design", topic)
	}

	reqBody := transfer.GeminiRequest{
		Contents: []transfer.GeminiContent{
			{Parts: []transfer.GeminiPart{{Text: imagePrompt}}},
		},
	}

	resp, err := s.call(ctx, geminiImageModel, &reqBody)
	if err != nil {
		return nil, "", err
	}

	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				slog.Info(err.Error())
				return nil, "", ErrGeneration
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return data, mimeType, nil
		}
	}

	slog.Info("image generation returned no inline data")
	return nil, "", ErrGeneration
}

func (s *aiService) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := transfer.GeminiRequest{
		Contents: []transfer.GeminiContent{
			{Parts: []transfer.GeminiPart{{Text: prompt}}},
		},
	}

	resp, err := s.call(ctx, geminiTextModel, &reqBody)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}

	if len(parts) == 0 {
		slog.Info("model returned no text candidates")
		return "", ErrGeneration
	}

	return strings.Join(parts, " "), nil
}

func (s *aiService) call(ctx context.Context, model string, reqBody *transfer.GeminiRequest) (*transfer.GeminiResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, model, s.cfg.GeminiAPIKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		slog.Info(fmt.Sprintf("model request failed with status %d: %s", resp.StatusCode, respBody))
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrGeneration, resp.StatusCode)
	}

	var geminiResp transfer.GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if geminiResp.Error != nil {
		slog.Info(geminiResp.Error.Message)
		return nil, fmt.Errorf("%w: %s", ErrGeneration, geminiResp.Error.Message)
	}

	return &geminiResp, nil
}
