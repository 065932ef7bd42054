package mcptool

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"diagrammer/internal/domain/entity"
)

const ToolName = "generate_architecture_diagram"

type Generator interface {
	Generate(ctx context.Context, prompt string) (*entity.GenerateResponse, error)
}

// NewServer exposes diagram generation as a single MCP tool.
func NewServer(gen Generator, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"diagrammer",
		version,
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Generate an architecture diagram (PNG) and its diagrams source code from a plain-language description."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Description of the architecture, e.g. 'two EC2 instances behind a load balancer'"),
		),
	)
	s.AddTool(tool, Handler(gen))
	return s
}

func Handler(gen Generator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil || prompt == "" {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		resp, err := gen.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return mcp.NewToolResultError(err.Error()), nil
		}

		text := fmt.Sprintf("Diagram #%d\n\n```python\n%s\n```", resp.ID, resp.DiagramCode)
		return mcp.NewToolResultImage(text, resp.DiagramImage, "image/png"), nil
	}
}
