package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
)

func TestHistoryEmptyIsNotNil(t *testing.T) {
	history, err := NewRequestService(newMemRepo(), nil).History(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, entity.NewDiagramRequest(p, "")))
	}
	require.NoError(t, repo.Fail(ctx, 2, "Code generation failed: x"))

	history, err := NewRequestService(repo, nil).History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "three", history[0].Prompt)
	assert.Equal(t, "two", history[1].Prompt)
	assert.Equal(t, entity.RequestStatusFailed, history[1].Status)
	require.NotNil(t, history[1].ErrorMessage)
	assert.Equal(t, "one", history[2].Prompt)
}

func TestGetImageWithoutArchive(t *testing.T) {
	_, err := NewRequestService(newMemRepo(), nil).GetImage(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCountByStatus(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entity.NewDiagramRequest("a", "")))
	require.NoError(t, repo.Create(ctx, entity.NewDiagramRequest("b", "")))
	require.NoError(t, repo.Complete(ctx, 1, "code"))

	counts, err := NewRequestService(repo, nil).CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[entity.RequestStatus]int{
		entity.RequestStatusPending:   1,
		entity.RequestStatusCompleted: 1,
		entity.RequestStatusFailed:    0,
	}, counts)
}
