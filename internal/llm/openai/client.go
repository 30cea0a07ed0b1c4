// Package openai implements the llm contracts over the official OpenAI SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-chat/internal/common/logger"
	"investment-chat/internal/common/metrics"
	"investment-chat/internal/llm"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	CodeModel      string
	EmbeddingModel string
	MaxRetries     int
}

// Client talks to chat completions, files, responses and embeddings endpoints.
type Client struct {
	config Config
	api    sdk.Client
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o"
	}
	if cfg.CodeModel == "" {
		cfg.CodeModel = "o3"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}, opts...)

	return &Client{
		config: cfg,
		api:    sdk.NewClient(clientOpts...),
		logger: log.With(map[string]interface{}{"provider": "openai"}),
	}, nil
}

// observe records latency and maps deadline expiry to llm.ErrTimeout.
// API errors are reduced to their status and message.
func observe(ctx context.Context, service string, started time.Time, err error) error {
	metrics.ExternalCallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", llm.ErrTimeout, service, err)
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("%s: status %d: %s", service, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s: status %d", service, apiErr.StatusCode)
	}
	return fmt.Errorf("%s: %w", service, err)
}

var (
	_ llm.ChatModel  = (*Client)(nil)
	_ llm.CodeRunner = (*Client)(nil)
	_ llm.Embedder   = (*Client)(nil)
)
