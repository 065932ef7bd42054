package usecase

import (
	"context"
	"fmt"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
)

type RequestUsecase interface {
	History(ctx context.Context) ([]entity.DiagramRequestSummary, error)
	GetRequest(ctx context.Context, id int64) (*entity.DiagramRequest, error)
	GetImage(ctx context.Context, id int64) ([]byte, error)
	CountByStatus(ctx context.Context) (map[entity.RequestStatus]int, error)
}

var _ RequestUsecase = (*RequestService)(nil)

type RequestService struct {
	requests repository.DiagramRequestRepository
	archive  repository.ImageArchive
}

func NewRequestService(requests repository.DiagramRequestRepository, archive repository.ImageArchive) *RequestService {
	return &RequestService{
		requests: requests,
		archive:  archive,
	}
}

// History returns every request, newest first. The result is never nil.
func (u *RequestService) History(ctx context.Context) ([]entity.DiagramRequestSummary, error) {
	reqs, err := u.requests.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]entity.DiagramRequestSummary, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (u *RequestService) GetRequest(ctx context.Context, id int64) (*entity.DiagramRequest, error) {
	return u.requests.GetByID(ctx, id)
}

func (u *RequestService) GetImage(ctx context.Context, id int64) ([]byte, error) {
	if u.archive == nil {
		return nil, fmt.Errorf("image archive is disabled: %w", repository.ErrNotFound)
	}
	return u.archive.Image(ctx, id)
}

func (u *RequestService) CountByStatus(ctx context.Context) (map[entity.RequestStatus]int, error) {
	counts := make(map[entity.RequestStatus]int, 3)
	for _, st := range []entity.RequestStatus{
		entity.RequestStatusPending,
		entity.RequestStatusCompleted,
		entity.RequestStatusFailed,
	} {
		n, err := u.requests.CountByStatus(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", st, err)
		}
		counts[st] = n
	}
	return counts, nil
}
