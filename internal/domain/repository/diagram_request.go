package repository

import (
	"context"
	"errors"

	"diagrammer/internal/domain/entity"
)

var (
	ErrNotFound          = errors.New("diagram request not found")
	ErrInvalidTransition = errors.New("diagram request is not pending")
)

// DiagramRequestRepository определяет доступ к хранилищу запросов на диаграммы.
// Complete and Fail only succeed on pending rows.
type DiagramRequestRepository interface {
	Create(ctx context.Context, req *entity.DiagramRequest) error
	GetByID(ctx context.Context, id int64) (*entity.DiagramRequest, error)
	List(ctx context.Context) ([]*entity.DiagramRequest, error)
	Complete(ctx context.Context, id int64, diagramCode string) error
	Fail(ctx context.Context, id int64, errorMessage string) error
	CountByStatus(ctx context.Context, status entity.RequestStatus) (int, error)
}
