package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

const (
	defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"
	defaultModel              = "gpt-4o-mini"
	defaultMaxTokens          = 900
	systemPrompt              = "You are a helpful assistant that writes articles."
	maxRetries                = 3
	initialDelay              = 500 * time.Millisecond
)

type Config struct {
	APIKey     string
	URL        string
	Model      string
	HTTPClient *http.Client
}

// Generator produces article text with the OpenAI chat completions API.
// Backend failures are reported as degraded results, never as errors.
type Generator struct {
	apiKey       string
	url          string
	defaultModel string
	client       *http.Client
	logger       *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func NewGenerator(cfg Config, l *zap.Logger) *Generator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultChatCompletionsURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	return &Generator{
		apiKey:       cfg.APIKey,
		url:          cfg.URL,
		defaultModel: cfg.Model,
		client:       cfg.HTTPClient,
		logger:       l,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerationOptions) domain.GenerationResult {
	if g.apiKey == "" {
		return domain.GenerationDegraded("OPENAI_API_KEY not set")
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.GenerationDegraded("empty prompt")
	}

	body, err := json.Marshal(g.buildRequest(prompt, opts))
	if err != nil {
		return domain.GenerationDegraded(fmt.Sprintf("marshal request: %v", err))
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.GenerationDegraded(fmt.Sprintf("generation cancelled: %v", ctx.Err()))
			}
		}

		text, retryable, err := g.complete(ctx, body)
		if err == nil {
			return domain.GenerationOK(text)
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
		g.logger.Warn("Retrying OpenAI request", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return domain.GenerationDegraded(lastErr.Error())
}

func (g *Generator) buildRequest(prompt string, opts domain.GenerationOptions) chatRequest {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = g.defaultModel
	}
	maxTokens := opts.MaxOutputUnits
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: math.Min(1, math.Max(0, opts.Temperature)),
	}
}

// complete performs one request. The bool reports whether a failure is worth
// retrying (transport errors, 429 and 5xx).
func (g *Generator) complete(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", false, fmt.Errorf("request aborted: %w", err)
		}
		return "", true, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", false, fmt.Errorf("response contained no content")
	}
	return parsed.Choices[0].Message.Content, false, nil
}
