package repository

import (
	"context"

	"diagrammer/internal/domain/entity"
)

// EventPublisher рассылает изменения статуса запросов.
type EventPublisher interface {
	Publish(ev entity.StatusEvent)
}

// ImageArchive keeps rendered images after the request completes.
type ImageArchive interface {
	Save(ctx context.Context, requestID int64, code string, png []byte) error
	Image(ctx context.Context, requestID int64) ([]byte, error)
}
