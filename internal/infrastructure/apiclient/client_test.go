package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/diagrams/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req entity.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "web app", req.Prompt)

		_ = json.NewEncoder(w).Encode(entity.GenerateResponse{ID: 4, DiagramCode: "code", DiagramImage: "aW1n"})
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/", time.Second).Generate(context.Background(), "web app")
	require.NoError(t, err)
	assert.Equal(t, int64(4), resp.ID)
	assert.Equal(t, "aW1n", resp.DiagramImage)
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Code generation failed: boom","status":"failed"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Generate(context.Background(), "web app")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Code generation failed: boom", apiErr.Message)
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/diagrams/history", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":2,"prompt":"b","status":"failed","created_at":"2024-03-01T10:00:00Z","error_message":"x"},{"id":1,"prompt":"a","status":"completed","created_at":"2024-03-01T09:00:00Z","error_message":null}]`))
	}))
	defer srv.Close()

	history, err := New(srv.URL, time.Second).History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].ID)
	assert.Equal(t, entity.RequestStatusFailed, history[0].Status)
	assert.Nil(t, history[1].ErrorMessage)
}
