package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/metrics"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIGenerator talks to any chat-completions compatible endpoint.
type OpenAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
	temperature float64
	policy      FallbackPolicy
	logger      *slog.Logger
}

var _ repository.LLMGenerator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(opts Options, logger *slog.Logger) *OpenAIGenerator {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIGenerator{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		model:       opts.Model,
		client:      &http.Client{Timeout: opts.timeout()},
		temperature: 0.2,
		policy:      opts.Fallback,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) GenerateDiagramCode(ctx context.Context, description string, prompt entity.Prompt) (string, error) {
	metrics.IncLLMRequest("openai", g.model)

	request := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": buildPrompt(prompt, description),
			},
		},
		"temperature": g.temperature,
	}

	start := time.Now()
	response, err := g.makeRequest(ctx, request)
	if err != nil {
		metrics.IncError("llm", "make_request")
		return "", fmt.Errorf("failed to make model request: %w", err)
	}
	g.logger.Debug("model responded", "provider", "openai", "model", g.model, "elapsed", time.Since(start))

	content, err := g.parseResponse(response)
	if err != nil {
		metrics.IncError("llm", "parse_response")
		return "", fmt.Errorf("failed to parse model response: %w", err)
	}

	return finalizeCode(content, g.policy, g.logger)
}

func (g *OpenAIGenerator) makeRequest(ctx context.Context, request map[string]interface{}) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		metrics.IncError("llm", "marshal_request")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		metrics.IncError("llm", "create_request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.IncError("llm", "http_do")
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Warn("close body failed", "err", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.IncError("llm", fmt.Sprintf("api_error_%d", resp.StatusCode))
		return nil, fmt.Errorf("model api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		metrics.IncError("llm", "decode_response")
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response, nil
}

func (g *OpenAIGenerator) parseResponse(response map[string]interface{}) (string, error) {
	choices, ok := response["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}

	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid response format: invalid choice")
	}

	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid response format: no message")
	}

	content, ok := message["content"].(string)
	if !ok {
		return "", fmt.Errorf("invalid response format: no content")
	}

	return content, nil
}
