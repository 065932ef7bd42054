package repository

import (
	"context"
)

// DiagramRenderer turns generated diagram source into a base64 encoded PNG.
type DiagramRenderer interface {
	Render(ctx context.Context, source string, requestID int64) (string, error)
}
