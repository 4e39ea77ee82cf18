package covers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkellner/bookshop/internal/pkg/env"
)

var (
	// ErrAnalyzerNotConfigured means no API key is set; callers should treat
	// the analyzer as an optional feature.
	ErrAnalyzerNotConfigured = errors.New("cover analyzer is not configured")
	// ErrUnreadableCover means the model could not extract book details from
	// the image.
	ErrUnreadableCover = errors.New("could not read book details from cover")
)

// BookDetails is what the analyzer extracts from a cover photo. Fields the
// model cannot determine are left zero.
type BookDetails struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	PublishedYear int    `json:"published_year"`
}

// Analyzer extracts book metadata from cover photos via an OpenAI-compatible
// chat completions API.
type Analyzer struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewAnalyzerFromEnv builds an Analyzer from OPENAI_* env variables. The
// returned analyzer is usable even when no key is set; Analyze then fails
// with ErrAnalyzerNotConfigured.
func NewAnalyzerFromEnv() *Analyzer {
	return &Analyzer{
		APIKey:  env.GetEnv("OPENAI_API_KEY", ""),
		BaseURL: env.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:   env.GetEnv("OPENAI_MODEL", "gpt-4o-mini"),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configured reports whether an API key is available.
func (a *Analyzer) Configured() bool {
	return a.APIKey != ""
}

const analyzePrompt = `You are given a photo of a book cover. Extract the book details and respond with ONLY a JSON object, no prose, using exactly these keys:
{"title": "...", "author": "...", "description": "...", "published_year": 0}
Write a short shop-listing description (2-3 sentences) based on what the cover shows. Use 0 for published_year and "" for any field you cannot determine. If the image is not a book cover, respond with {"error": "not a book cover"}.`

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Analyze sends a cover image to the vision model and parses the extracted
// book details. The image is normalized (oriented, downscaled) before upload.
func (a *Analyzer) Analyze(ctx context.Context, imageData []byte) (*BookDetails, error) {
	if !a.Configured() {
		return nil, ErrAnalyzerNotConfigured
	}

	normalized := NormalizeForAnalysis(imageData)
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(normalized)

	reqBody := chatRequest{
		Model:     a.Model,
		MaxTokens: 500,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []chatContent{
					{Type: "text", Text: analyzePrompt},
					{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding analyzer request: %w", err)
	}

	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling analyzer API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading analyzer response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding analyzer response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("analyzer API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer API returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("analyzer API returned no choices")
	}

	return parseBookDetails(parsed.Choices[0].Message.Content)
}

// parseBookDetails extracts the JSON object from the model's reply. Models
// sometimes wrap JSON in code fences; tolerate that.
func parseBookDetails(content string) (*BookDetails, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, ErrUnreadableCover
	}

	var raw struct {
		BookDetails
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, ErrUnreadableCover
	}
	if raw.Error != "" {
		return nil, ErrUnreadableCover
	}
	if raw.Title == "" && raw.Author == "" {
		return nil, ErrUnreadableCover
	}

	details := raw.BookDetails
	return &details, nil
}
