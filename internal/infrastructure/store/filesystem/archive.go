package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"diagrammer/internal/domain/repository"
)

const (
	imageFileName    = "diagram.png"
	codeFileName     = "diagram.py"
	metadataFileName = "metadata.json"
)

var ErrNotArchived = fmt.Errorf("diagram is not archived: %w", repository.ErrNotFound)

// Archive keeps rendered diagrams on disk, one directory per request id.
type Archive struct {
	basePath string
}

type metadata struct {
	RequestID int64     `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	ImageSize int       `json:"image_size"`
}

var _ repository.ImageArchive = (*Archive)(nil)

func NewArchive(basePath string) (*Archive, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return &Archive{basePath: basePath}, nil
}

func (a *Archive) BasePath() string {
	return a.basePath
}

func (a *Archive) dir(requestID int64) string {
	return filepath.Join(a.basePath, strconv.FormatInt(requestID, 10))
}

// Save writes the source and the image for a request, replacing earlier files.
func (a *Archive) Save(ctx context.Context, requestID int64, code string, png []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := a.dir(requestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create request directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, codeFileName), []byte(code), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", codeFileName, err)
	}
	if err := os.WriteFile(filepath.Join(dir, imageFileName), png, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", imageFileName, err)
	}

	meta, err := json.MarshalIndent(metadata{
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
		ImageSize: len(png),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFileName), meta, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Image returns the archived PNG for a request.
func (a *Archive) Image(ctx context.Context, requestID int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := os.ReadFile(filepath.Join(a.dir(requestID), imageFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return png, nil
}
