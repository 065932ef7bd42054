package llm

import (
	"fmt"
	"log/slog"
	"time"

	"diagrammer/internal/domain/repository"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultTimeout = 2 * time.Minute
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Fallback FallbackPolicy
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

// New returns the generator for the configured provider.
func New(opts Options, logger *slog.Logger) (repository.LLMGenerator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key for provider %q is not set", opts.Provider)
	}
	switch opts.Provider {
	case "", ProviderGemini:
		return NewGeminiGenerator(opts, logger), nil
	case ProviderOpenAI:
		if opts.Model == "" {
			return nil, fmt.Errorf("model must be set for provider %q", opts.Provider)
		}
		return NewOpenAIGenerator(opts, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
}
