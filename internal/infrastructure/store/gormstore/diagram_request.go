package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/metrics"
)

type DiagramRequestRepo struct {
	db *gorm.DB
}

func NewDiagramRequestRepo(db *gorm.DB) repository.DiagramRequestRepository {
	return &DiagramRequestRepo{db: db}
}

func (r *DiagramRequestRepo) Create(ctx context.Context, req *entity.DiagramRequest) error {
	metrics.IncDBOp("create")

	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		metrics.IncError("gorm_request_repo", "create_error")
		return err
	}
	return nil
}

func (r *DiagramRequestRepo) GetByID(ctx context.Context, id int64) (*entity.DiagramRequest, error) {
	metrics.IncDBOp("get")

	var req entity.DiagramRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		metrics.IncError("gorm_request_repo", "get_error")
		return nil, err
	}
	return &req, nil
}

func (r *DiagramRequestRepo) List(ctx context.Context) ([]*entity.DiagramRequest, error) {
	metrics.IncDBOp("list")

	reqs := make([]*entity.DiagramRequest, 0)
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&reqs).Error; err != nil {
		metrics.IncError("gorm_request_repo", "list_error")
		return nil, err
	}
	return reqs, nil
}

func (r *DiagramRequestRepo) Complete(ctx context.Context, id int64, diagramCode string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":       entity.RequestStatusCompleted,
		"diagram_code": diagramCode,
	})
}

func (r *DiagramRequestRepo) Fail(ctx context.Context, id int64, errorMessage string) error {
	return r.finish(ctx, id, map[string]interface{}{
		"status":        entity.RequestStatusFailed,
		"error_message": errorMessage,
	})
}

// finish moves a pending row to a terminal state. The status condition in the
// WHERE clause makes the transition happen at most once.
func (r *DiagramRequestRepo) finish(ctx context.Context, id int64, values map[string]interface{}) error {
	metrics.IncDBOp("put")

	res := r.db.WithContext(ctx).
		Model(&entity.DiagramRequest{}).
		Where("id = ? AND status = ?", id, entity.RequestStatusPending).
		Updates(values)
	if res.Error != nil {
		metrics.IncError("gorm_request_repo", "update_error")
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DiagramRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrInvalidTransition
}

func (r *DiagramRequestRepo) CountByStatus(ctx context.Context, status entity.RequestStatus) (int, error) {
	metrics.IncDBOp("count")

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.DiagramRequest{}).Where("status = ?", status).Count(&count).Error; err != nil {
		metrics.IncError("gorm_request_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}
