// Package mcpserver exposes the tool registry over the Model Context
// Protocol.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hession/exatool/internal/logger"
	"github.com/hession/exatool/internal/tools"
)

const serverName = "exatool"

// Options configures the MCP server.
type Options struct {
	Version string
	Logger  *logger.Logger
}

// New builds an MCP server with one MCP tool per registered tool.
func New(registry *tools.Registry, opts Options) *mcp.Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, &mcp.ServerOptions{
		Instructions: "Web search, question answering, similar-page discovery and page content retrieval backed by Exa.",
		Logger:       slogBridge(opts.Logger),
	})

	for _, tool := range registry.List() {
		server.AddTool(&mcp.Tool{
			Name:        tool.Name(),
			Description: registry.Description(tool),
			InputSchema: tools.InputSchema(tool),
		}, handler(registry, tool.Name()))
	}
	return server
}

// Serve runs the server over stdin/stdout until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, registry *tools.Registry, opts Options) error {
	return New(registry, opts).Run(ctx, &mcp.StdioTransport{})
}

func handler(registry *tools.Registry, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(tools.ErrorOutcome{Kind: tools.KindValidation, Code: string(tools.InvalidType), Message: err.Error()}), nil
		}

		result, err := registry.Dispatch(ctx, tools.ToolRequest{Name: name, Params: args})
		if err != nil {
			return errorResult(tools.Outcome(err)), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s result: %w", name, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: result.Markdown()},
				&mcp.TextContent{Text: string(data)},
			},
			StructuredContent: json.RawMessage(data),
		}, nil
	}
}

// decodeArguments keeps numbers as json.Number so integers survive intact.
func decodeArguments(raw json.RawMessage) (tools.Args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return tools.Args{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var args tools.Args
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return args, nil
}

func errorResult(outcome tools.ErrorOutcome) *mcp.CallToolResult {
	data, _ := json.Marshal(outcome)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: outcome,
		IsError:           true,
	}
}

// slogBridge routes SDK logging into the application log file. stdout
// carries the protocol and must stay untouched.
func slogBridge(l *logger.Logger) *slog.Logger {
	if l == nil {
		l = logger.GetDefault()
	}
	if l == nil {
		return nil
	}
	return slog.New(slog.NewTextHandler(l.GetWriter(logger.DEBUG), &slog.HandlerOptions{Level: slog.LevelInfo}))
}
