package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/sociantra/sociantra/configs"
	"github.com/sociantra/sociantra/internal/transfer"
)

func newTestAIService(srv *httptest.Server) *aiService {
	return &aiService{
		cfg:     config.Config{GeminiAPIKey: "test-key"},
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func geminiTextResponse(text string) transfer.GeminiResponse {
	var resp transfer.GeminiResponse
	resp.Candidates = []struct {
		Content transfer.GeminiContent `json:"content"`
	}{
		{Content: transfer.GeminiContent{Parts: []transfer.GeminiPart{{Text: text}}}},
	}
	return resp
}

func TestGeneratePost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(geminiTextResponse(`Here you go:
{"text": "Ship small, ship often.", "hashtags": ["#devops", "#shipping"]}`))
	}))
	defer srv.Close()

	s := newTestAIService(srv)
	post, err := s.GeneratePost(context.Background(), "continuous delivery", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Text != "Ship small, ship often." {
		t.Errorf("unexpected text: %q", post.Text)
	}
	if len(post.Hashtags) != 2 || post.Hashtags[0] != "#devops" {
		t.Errorf("unexpected hashtags: %v", post.Hashtags)
	}
}

func TestGeneratePostHashtagFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiTextResponse("Great insights on remote work! #remote #productivity"))
	}))
	defer srv.Close()

	s := newTestAIService(srv)
	post, err := s.GeneratePost(context.Background(), "remote work", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.Text != "Great insights on remote work! #remote #productivity" {
		t.Errorf("unexpected text: %q", post.Text)
	}
	if len(post.Hashtags) != 2 {
		t.Errorf("expected 2 hashtags, got %v", post.Hashtags)
	}
}

func TestGeneratePostServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newTestAIService(srv)
	_, err := s.GeneratePost(context.Background(), "anything", "en")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGeneratePostAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	s := newTestAIService(srv)
	_, err := s.GeneratePost(context.Background(), "anything", "en")
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateImage(t *testing.T) {
	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47}
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			json.NewEncoder(w).Encode(geminiTextResponse("A clean modern workspace illustration"))
			return
		}
		var resp transfer.GeminiResponse
		resp.Candidates = []struct {
			Content transfer.GeminiContent `json:"content"`
		}{
			{Content: transfer.GeminiContent{Parts: []transfer.GeminiPart{
				{InlineData: &transfer.GeminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(imageBytes),
				}},
			}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	s := newTestAIService(srv)
	data, mimeType, err := s.GenerateImage(context.Background(), "productivity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("unexpected mime type: %q", mimeType)
	}
	if len(data) != len(imageBytes) {
		t.Errorf("unexpected image payload: %v", data)
	}
	if calls != 2 {
		t.Errorf("expected prompt call plus render call, got %d calls", calls)
	}
}

func TestParseGeneratedPost(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantTags int
	}{
		{
			name:     "json block",
			raw:      `{"text": "hello", "hashtags": ["#a", "#b", "#c"]}`,
			wantText: "hello",
			wantTags: 3,
		},
		{
			name:     "json block with surrounding prose",
			raw:      "Sure, here is the post:\n{\"text\": \"hello\", \"hashtags\": [\"#a\"]}\nEnjoy!",
			wantText: "hello",
			wantTags: 1,
		},
		{
			name:     "plain text with hashtags",
			raw:      "Just a regular post #one #two",
			wantText: "Just a regular post #one #two",
			wantTags: 2,
		},
		{
			name:     "hashtag scan caps at five",
			raw:      "post #1a #2b #3c #4d #5e #6f #7g",
			wantText: "post #1a #2b #3c #4d #5e #6f #7g",
			wantTags: 5,
		},
		{
			name:     "broken json falls back to raw text",
			raw:      `{"text": "unterminated`,
			wantText: `{"text": "unterminated`,
			wantTags: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := parseGeneratedPost(tt.raw)
			if post.Text != tt.wantText {
				t.Errorf("text = %q, want %q", post.Text, tt.wantText)
			}
			if len(post.Hashtags) != tt.wantTags {
				t.Errorf("hashtags = %v, want %d entries", post.Hashtags, tt.wantTags)
			}
		})
	}
}

func TestComposeContent(t *testing.T) {
	got := ComposeContent("body", []string{"#a", "#b"})
	if got != "body\n\n#a #b" {
		t.Errorf("unexpected composed content: %q", got)
	}

	if got := ComposeContent("body", nil); got != "body" {
		t.Errorf("expected bare text without hashtags, got %q", got)
	}
}
