package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"birthdaybot/internal/types"
)

const openAIAPIBase = "https://api.openai.com/v1"

// OpenAIClientConfig configures an OpenAIClient.
type OpenAIClientConfig struct {
	APIKey       types.SecretString
	BaseURL      string
	Model        string
	ImageModel   string
	ImageSize    string
	ImageQuality string
	MaxTokens    int
	Logger       *slog.Logger
}

// ChatMessage is one turn of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIClient calls the chat completions and image generation endpoints
// over plain HTTP through BaseClient.
type OpenAIClient struct {
	base   *BaseClient
	cfg    OpenAIClientConfig
	apiKey string
	logger *slog.Logger
}

func NewOpenAIClient(httpClient *http.Client, cfg OpenAIClientConfig, opts ...BaseClientOption) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIAPIBase
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIClient{
		base: NewBaseClient(
			httpClient,
			"openai",
			RetryPolicy{MaxRetries: 2, MinWait: 2 * time.Second, MaxWait: 20 * time.Second},
			"birthdaybot/1.0",
			opts...,
		),
		cfg:    cfg,
		apiKey: cfg.APIKey.Unmask(),
		logger: logger,
	}
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

type imageGenerationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Complete returns the first choice's text for messages.
func (c *OpenAIClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	var out chatCompletionResponse
	err := c.post(ctx, "/chat/completions", "chat completion", chatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamGeneration, "OpenAI returned an empty completion", nil)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// GenerateImage returns decoded PNG bytes for prompt.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	var out imageGenerationResponse
	err := c.post(ctx, "/images/generations", "image generation", imageGenerationRequest{
		Model:   c.cfg.ImageModel,
		Prompt:  prompt,
		N:       1,
		Size:    c.cfg.ImageSize,
		Quality: c.cfg.ImageQuality,
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeneration, "OpenAI returned no image data", nil)
	}
	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeneration, "OpenAI image payload is not valid base64", err)
	}
	return img, nil
}

func (c *OpenAIClient) post(ctx context.Context, path, op string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize OpenAI request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create OpenAI request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapOp("OpenAI", op, types.ErrCodeUpstreamGeneration, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body := readErrorBody(resp)
		c.logger.ErrorContext(ctx, "OpenAI API error",
			"operation", op,
			"status_code", resp.StatusCode,
			"response_body", body,
		)
		return types.NewAppError(types.ErrCodeUpstreamGeneration,
			fmt.Sprintf("OpenAI %s returned %d", op, resp.StatusCode), nil)
	}
	if err := decodeJSON(resp, out); err != nil {
		return wrapOp("OpenAI", op, types.ErrCodeUpstreamGeneration, err)
	}
	return nil
}
