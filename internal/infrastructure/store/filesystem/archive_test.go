package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveRoundTrip(t *testing.T) {
	a, err := NewArchive(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Image(ctx, 1)
	assert.ErrorIs(t, err, ErrNotArchived)

	require.NoError(t, a.Save(ctx, 1, "from diagrams import Diagram", []byte("png")))

	png, err := a.Image(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), png)

	code, err := os.ReadFile(filepath.Join(a.BasePath(), "1", "diagram.py"))
	require.NoError(t, err)
	assert.Equal(t, "from diagrams import Diagram", string(code))
	assert.FileExists(t, filepath.Join(a.BasePath(), "1", "metadata.json"))
}

func TestNewArchiveRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := NewArchive(path)
	assert.ErrorContains(t, err, "is not a directory")
}
