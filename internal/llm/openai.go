package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultTimeout       = 60 * time.Second
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	http  *resty.Client
	model string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	return &OpenAIClient{http: c, model: cfg.Model}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

// Generate sends the directive as the system message and content as the user
// message and returns the first choice.
func (c *OpenAIClient) Generate(ctx context.Context, directive, content string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: directive},
			{Role: "user", Content: content},
		},
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		return "", &GenerationError{Provider: "openai", Err: err}
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &GenerationError{Provider: "openai", Status: resp.StatusCode(), Err: errors.New(msg)}
	}
	if out.Error != nil {
		return "", &GenerationError{Provider: "openai", Err: errors.New(out.Error.Message)}
	}
	if len(out.Choices) == 0 {
		return "", &GenerationError{Provider: "openai", Err: fmt.Errorf("no completion returned")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
