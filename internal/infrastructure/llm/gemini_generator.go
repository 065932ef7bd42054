package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/metrics"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiGenerator calls the generateContent REST method.
type GeminiGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	policy  FallbackPolicy
	logger  *slog.Logger
}

var _ repository.LLMGenerator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(opts Options, logger *slog.Logger) *GeminiGenerator {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: opts.timeout()},
		policy:  opts.Fallback,
		logger:  logger,
	}
}

func (g *GeminiGenerator) GenerateDiagramCode(ctx context.Context, description string, prompt entity.Prompt) (string, error) {
	metrics.IncLLMRequest("gemini", g.model)

	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: buildPrompt(prompt, description)}}}}
	body.GenerationConfig.Temperature = 0.2

	start := time.Now()
	resp, err := g.makeRequest(ctx, body)
	if err != nil {
		metrics.IncError("llm", "make_request")
		return "", fmt.Errorf("failed to make model request: %w", err)
	}
	g.logger.Debug("model responded", "provider", "gemini", "model", g.model, "elapsed", time.Since(start))

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		metrics.IncError("llm", "blocked")
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		metrics.IncError("llm", "parse_response")
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	return finalizeCode(sb.String(), g.policy, g.logger)
}

func (g *GeminiGenerator) makeRequest(ctx context.Context, body geminiRequest) (*geminiResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn("close body failed", "err", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		return nil, fmt.Errorf("model api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
