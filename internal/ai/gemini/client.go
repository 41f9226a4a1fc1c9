package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/unimarket/matchmaker/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
)

// modelCaller is the slice of the genai client the generator needs. Kept as
// an interface so tests can substitute a fake.
type modelCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based
// interactions with bounded retries and a process-wide rate limit.
type Generator struct {
	models     modelCaller
	model      string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, maxRetries int, limiter *rate.Limiter, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries < 1 {
		maxRetries = defaultMaxRetries
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the first textual
// response. Temporary API errors are retried up to the configured attempt
// count with a linear backoff.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("wait for rate limiter: %w", err)
			}
		}

		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err == nil {
			return collectText(resp)
		}

		lastErr = err
		if !isTemporary(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}

		g.logger.Debug("temporary gemini error, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", g.maxRetries),
			zap.Error(err),
		)

		if attempt < g.maxRetries {
			if err := utils.WaitFor(ctx, time.Duration(attempt)*time.Second); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("generate content after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

func isTemporary(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 429 || apiErr.Code >= 500
}
