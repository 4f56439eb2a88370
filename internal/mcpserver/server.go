package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps mcp-go's MCPServer with this bridge's dispatch table,
// stdio transport only: stdout carries the JSON-RPC wire, all
// diagnostic output goes to stderr via the shared slog logger.
type Server struct {
	mcp  *server.MCPServer
	disp *Dispatcher
	log  *slog.Logger
}

// NewServer builds the MCP server and registers every tool name the
// dispatcher exposes, each routed through a single generic handler.
func NewServer(disp *Dispatcher, log *slog.Logger, version string) *Server {
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if req != nil {
			log.Debug("mcpserver: tool call completed", "tool", req.Params.Name)
		}
	})

	mcpServer := server.NewMCPServer(
		"zulip-mcp",
		version,
		server.WithHooks(hooks),
		server.WithToolCapabilities(false),
	)

	s := &Server{mcp: mcpServer, disp: disp, log: log}
	for _, name := range disp.Names() {
		s.registerTool(name)
	}
	return s
}

func (s *Server) registerTool(name string) {
	tool := mcp.NewTool(name, mcp.WithDescription("zulip-mcp tool: "+name))
	server.AddTool(s.mcp, tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := req.GetArguments()
		result, err := s.disp.Dispatch(ctx, name, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		blob, merr := json.Marshal(result)
		if merr != nil {
			return mcp.NewToolResultError(merr.Error()), nil
		}
		return mcp.NewToolResultText(string(blob)), nil
	})
}

// ListenStdio blocks serving JSON-RPC over stdin/stdout until ctx is
// cancelled.
func (s *Server) ListenStdio(ctx context.Context) error {
	s.log.Info("mcpserver: listening on stdio", "tool_count", len(s.disp.handlers))
	stdioSrv := server.NewStdioServer(s.mcp)
	return stdioSrv.Listen(ctx, os.Stdin, os.Stdout)
}
