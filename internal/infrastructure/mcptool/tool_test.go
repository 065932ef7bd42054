package mcptool

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagrammer/internal/domain/entity"
)

type fakeGenerator struct {
	resp *entity.GenerateResponse
	err  error
}

func (f fakeGenerator) Generate(context.Context, string) (*entity.GenerateResponse, error) {
	return f.resp, f.err
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func TestHandlerReturnsImage(t *testing.T) {
	h := Handler(fakeGenerator{resp: &entity.GenerateResponse{ID: 3, DiagramCode: "code", DiagramImage: "aW1n"}})

	res, err := h(context.Background(), call(map[string]any{"prompt": "web app"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var sawImage, sawText bool
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.ImageContent:
			sawImage = true
			assert.Equal(t, "aW1n", v.Data)
			assert.Equal(t, "image/png", v.MIMEType)
		case mcp.TextContent:
			sawText = true
			assert.Contains(t, v.Text, "Diagram #3")
		}
	}
	assert.True(t, sawImage)
	assert.True(t, sawText)
}

func TestHandlerMissingPrompt(t *testing.T) {
	res, err := Handler(fakeGenerator{})(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandlerGenerationError(t *testing.T) {
	res, err := Handler(fakeGenerator{err: errors.New("api error: 500 - Code generation failed: x")})(context.Background(), call(map[string]any{"prompt": "web app"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServer(t *testing.T) {
	s := NewServer(fakeGenerator{}, "test")
	require.NotNil(t, s)
}
