package repository

import (
	"context"

	"diagrammer/internal/domain/entity"
)

// LLMGenerator генерирует код диаграммы через LLM
type LLMGenerator interface {
	// GenerateDiagramCode returns diagram-construction source for the user prompt.
	GenerateDiagramCode(ctx context.Context, description string, prompt entity.Prompt) (string, error)
}
