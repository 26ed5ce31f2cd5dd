package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/bpm-api/internal/config"
	"github.com/phrazzld/bpm-api/internal/generation"
	"google.golang.org/genai"
)

// contentGenerator is the part of the genai client Model uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Model implements generation.Model with the Gemini API.
type Model struct {
	logger     *slog.Logger
	client     contentGenerator
	model      string
	params     *genai.GenerateContentConfig
	maxRetries int
	baseDelay  time.Duration
	rng        *rand.Rand
}

var _ generation.Model = (*Model)(nil)

// NewModel creates a Gemini client for cfg.
func NewModel(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Model, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}
	return newModel(client.Models, logger, cfg)
}

func newModel(client contentGenerator, logger *slog.Logger, cfg config.LLMConfig) (*Model, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	params := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopP:            genai.Ptr(cfg.TopP),
		MaxOutputTokens: cfg.MaxTokens,
		CandidateCount:  1,
	}
	if cfg.StopSequence != "" {
		params.StopSequences = []string{cfg.StopSequence}
	}
	return &Model{
		logger:     logger.With(slog.String("component", "gemini"), slog.String("model", cfg.ModelName)),
		client:     client,
		model:      cfg.ModelName,
		params:     params,
		maxRetries: cfg.MaxRetries,
		baseDelay:  time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Complete sends prompt and returns the text of the first candidate.
// Transient failures are retried up to the configured number of times.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrInvalidConfig)
	}

	for attempt := 0; ; attempt++ {
		m.logger.DebugContext(ctx, "calling Gemini API",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", m.maxRetries+1))

		text, err := m.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if generation.IsPermanent(err) || !isTransient(err) {
			m.logger.WarnContext(ctx, "Gemini API call failed permanently",
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			return "", err
		}
		if attempt >= m.maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, m.maxRetries, err)
		}

		// delay = base * 2^attempt * [0.5, 1.0)
		backoff := float64(m.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + m.rng.Float64()*0.5))
		m.logger.InfoContext(ctx, "retrying Gemini API call",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

func (m *Model) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.GenerateContent(ctx, m.model, genai.Text(prompt), m.params)
	switch {
	case err != nil:
		return "", err
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	case len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return text, nil
}

// isTransient reports whether err from the client is worth retrying.
// API errors are transient only for rate limiting and server failures.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
