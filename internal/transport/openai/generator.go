package openai

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/domain"
	"github.com/lumen-docs/corpusqa/internal/metrics"
)

const serviceGeneration = "generation"

// The request encoder drops a literal 0 temperature (omitempty), which
// would fall back to the provider default; the smallest positive float
// pins sampling to its most deterministic setting.
const pinnedTemperature = math.SmallestNonzeroFloat32

// Generator produces chat completions for rendered prompts.
type Generator struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// GeneratorConfig holds the generative model settings.
type GeneratorConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat completion provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Generate implements domain.Generator. The prompt is sent as a single user
// message; the raw completion text is returned untouched.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: pinnedTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, callOptions{
		service:    serviceGeneration,
		model:      g.model,
		timeout:    g.timeout,
		maxRetries: g.maxRetries,
		logger:     g.logger,
	}, func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.client.CreateChatCompletion(ctx, req)
		return callErr
	})

	duration := time.Since(start)

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(serviceGeneration, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(serviceGeneration, g.model, "api_error").Inc()
		return "", parseAPIError(err, domain.ErrGenerationProvider)
	}

	if len(resp.Choices) == 0 {
		metrics.ModelRequestsTotal.WithLabelValues(serviceGeneration, g.model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(serviceGeneration, g.model, "empty_response").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationProvider)
	}

	metrics.ModelRequestsTotal.WithLabelValues(serviceGeneration, g.model, "success").Inc()
	metrics.ModelRequestDuration.WithLabelValues(serviceGeneration, g.model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		tokens := metrics.ModelTokensTotal
		tokens.WithLabelValues(serviceGeneration, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		tokens.WithLabelValues(serviceGeneration, g.model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	g.logger.Debug("Generation request completed",
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}
