// Package generation talks to the generative-language API that writes
// article bodies.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/articlegen/articlegen/internal/shared"
)

const (
	// DefaultBaseURL is the public Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"
)

// Generator produces article content for a title.
type Generator interface {
	GenerateArticle(ctx context.Context, title, details string) (string, error)
}

// Observer receives the outcome of every upstream call.
type Observer interface {
	ObserveGeneration(outcome string, elapsed time.Duration)
}

// Config configures the Gemini client.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client wraps the Gemini generateContent API.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	observer   Observer
}

// NewClient constructs a new client. observer may be nil.
func NewClient(cfg Config, observer Observer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		observer:   observer,
	}
}

// BuildPrompt renders the article prompt for title and optional details.
func BuildPrompt(title, details string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a detailed, well-structured programming article titled %q.", title)
	if details = strings.TrimSpace(details); details != "" {
		b.WriteString(" ")
		b.WriteString(strings.TrimRight(details, "."))
		b.WriteString(".")
	}
	b.WriteString(" Include examples and best practices.")
	return b.String()
}

// GenerateArticle generates the body of an article.
func (c *Client) GenerateArticle(ctx context.Context, title, details string) (string, error) {
	return c.Generate(ctx, BuildPrompt(title, details))
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt upstream and returns the first candidate's text.
// Every failure wraps shared.ErrGeneration.
func (c *Client) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() {
		if c.observer == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.observer.ObserveGeneration(outcome, time.Since(start))
	}()

	payload, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", shared.ErrGeneration, err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", shared.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrGeneration, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", shared.ErrGeneration, err)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.Unmarshal(body, &apiErr)
		return "", fmt.Errorf("%w: upstream returned status %d: %s", shared.ErrGeneration, resp.StatusCode, apiErr.Error.Message)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", shared.ErrGeneration, err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: response had no candidates", shared.ErrGeneration)
	}
	text = decoded.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty candidate text", shared.ErrGeneration)
	}
	return text, nil
}

var _ Generator = (*Client)(nil)
