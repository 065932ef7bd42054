package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/metrics"
)

var ErrEmptyPrompt = errors.New("prompt is required")

const (
	StageGeneration = "generation"
	StageRendering  = "rendering"
	StageSaving     = "saving"
)

// GenerationError is returned after the request row was marked failed.
// Error() is the text stored on the row.
type GenerationError struct {
	RequestID int64
	Stage     string
	Err       error
}

func (e *GenerationError) Error() string {
	switch e.Stage {
	case StageGeneration:
		return "Code generation failed: " + e.Err.Error()
	case StageRendering:
		return "Diagram rendering failed: " + e.Err.Error()
	}
	return "Saving diagram failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type DiagramUsecase interface {
	Generate(ctx context.Context, in entity.GenerateRequest) (*entity.GenerateResponse, error)
}

var _ DiagramUsecase = (*DiagramGeneratorService)(nil)

type DiagramGeneratorService struct {
	requests  repository.DiagramRequestRepository
	llm       repository.LLMGenerator
	renderer  repository.DiagramRenderer
	publisher repository.EventPublisher
	archive   repository.ImageArchive // optional
	logger    *slog.Logger
}

func NewDiagramGeneratorService(
	requests repository.DiagramRequestRepository,
	llm repository.LLMGenerator,
	renderer repository.DiagramRenderer,
	publisher repository.EventPublisher,
	archive repository.ImageArchive,
	logger *slog.Logger,
) *DiagramGeneratorService {
	return &DiagramGeneratorService{
		requests:  requests,
		llm:       llm,
		renderer:  renderer,
		publisher: publisher,
		archive:   archive,
		logger:    logger,
	}
}

// Generate runs the whole pipeline for one prompt:
// 1) persist a pending row
// 2) generate code via LLM
// 3) render the image
// 4) mark the row completed or failed and publish the change
func (s *DiagramGeneratorService) Generate(ctx context.Context, in entity.GenerateRequest) (*entity.GenerateResponse, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	startTime := time.Now()
	req := entity.NewDiagramRequest(prompt, strings.TrimSpace(in.DiagramType))
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	metrics.IncRequestsCreated()
	metrics.IncActiveRequests()
	defer func() {
		metrics.DecActiveRequests()
		metrics.ObserveRequestDuration(time.Since(startTime))
	}()
	s.publish(req.ID, prompt, entity.RequestStatusPending, "")

	logger := s.logger.With("request_id", req.ID)
	logger.Info("start processing request")

	// 1) Generate via LLM
	code, err := s.llm.GenerateDiagramCode(ctx, prompt, entity.DiagramPrompt)
	if err != nil {
		return nil, s.fail(ctx, logger, req, &GenerationError{RequestID: req.ID, Stage: StageGeneration, Err: err})
	}

	// 2) Render
	image, err := s.renderer.Render(ctx, code, req.ID)
	if err != nil {
		return nil, s.fail(ctx, logger, req, &GenerationError{RequestID: req.ID, Stage: StageRendering, Err: err})
	}

	// 3) Complete
	if err := s.requests.Complete(context.WithoutCancel(ctx), req.ID, code); err != nil {
		return nil, s.fail(ctx, logger, req, &GenerationError{RequestID: req.ID, Stage: StageSaving, Err: err})
	}
	metrics.IncRequestStatusChange(string(entity.RequestStatusPending), string(entity.RequestStatusCompleted))
	s.publish(req.ID, prompt, entity.RequestStatusCompleted, "")

	if s.archive != nil {
		s.store(ctx, logger, req.ID, code, image)
	}

	logger.Info("request completed", "duration", time.Since(startTime))
	return &entity.GenerateResponse{
		ID:           req.ID,
		DiagramCode:  code,
		DiagramImage: image,
	}, nil
}

// fail marks the row failed even if the caller has gone away, so no row is
// left pending.
func (s *DiagramGeneratorService) fail(ctx context.Context, logger *slog.Logger, req *entity.DiagramRequest, genErr *GenerationError) error {
	msg := genErr.Error()
	logger.Error("request failed", "stage", genErr.Stage, "err", genErr.Err)
	metrics.IncError("generator", genErr.Stage)

	if err := s.requests.Fail(context.WithoutCancel(ctx), req.ID, msg); err != nil {
		logger.Error("failed to mark request failed", "err", err)
		return fmt.Errorf("%w (mark failed: %v)", genErr, err)
	}
	metrics.IncRequestStatusChange(string(entity.RequestStatusPending), string(entity.RequestStatusFailed))
	s.publish(req.ID, req.Prompt, entity.RequestStatusFailed, msg)
	return genErr
}

func (s *DiagramGeneratorService) store(ctx context.Context, logger *slog.Logger, id int64, code, image string) {
	png, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		logger.Warn("decode image for archive failed", "err", err)
		return
	}
	if err := s.archive.Save(ctx, id, code, png); err != nil {
		logger.Warn("archive image failed", "err", err)
	}
}

func (s *DiagramGeneratorService) publish(id int64, prompt string, status entity.RequestStatus, errMsg string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(entity.StatusEvent{
		ID:           id,
		Prompt:       prompt,
		Status:       status,
		ErrorMessage: errMsg,
	})
}
