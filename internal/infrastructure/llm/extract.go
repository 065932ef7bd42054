package llm

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/infrastructure/metrics"
)

var (
	ErrMalformedCode = errors.New("invalid diagram code")
	ErrEmptyResponse = errors.New("model returned no content")
)

// FallbackPolicy decides what happens to model output that lacks the
// required structure.
type FallbackPolicy string

const (
	// FallbackReject fails the generation with ErrMalformedCode.
	FallbackReject FallbackPolicy = "reject"
	// FallbackTemplate substitutes entity.FallbackDiagramCode.
	FallbackTemplate FallbackPolicy = "template"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FallbackReject, nil
	case FallbackReject, FallbackTemplate:
		return p, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q (want reject or template)", s)
}

var fenceRe = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)(?:```|$)")

// ExtractCode strips a Markdown code fence around the model output, if any.
func ExtractCode(content string) string {
	content = strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

// ValidateCode checks the structural markers every generated program must carry.
func ValidateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrEmptyResponse
	}
	if !strings.HasPrefix(code, "from diagrams") {
		return fmt.Errorf("%w: code must start with diagrams imports", ErrMalformedCode)
	}
	for _, marker := range entity.RequiredMarkers {
		if !strings.Contains(code, marker) {
			return fmt.Errorf("%w: missing required code element: %s", ErrMalformedCode, marker)
		}
	}
	return nil
}

// finalizeCode extracts and validates model output, applying the fallback
// policy to malformed code.
func finalizeCode(content string, policy FallbackPolicy, logger *slog.Logger) (string, error) {
	code := ExtractCode(content)
	err := ValidateCode(code)
	if err == nil {
		return code, nil
	}
	if policy == FallbackTemplate {
		metrics.IncLLMFallback()
		logger.Warn("model output rejected, using fallback template", "err", err)
		return entity.FallbackDiagramCode, nil
	}
	metrics.IncError("llm", "malformed_code")
	return "", fmt.Errorf("%w\nGenerated code:\n%s", err, code)
}

func buildPrompt(prompt entity.Prompt, description string) string {
	return prompt.Text + "\n\nCreate a diagram based on this prompt: " + description +
		"\n\nReturn ONLY the Python code, starting with imports."
}
