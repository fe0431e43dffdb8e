// ABOUTME: MCP server setup for afterwod workout history.
// ABOUTME: Wraps the MCP server around a storage Adapter and the kv store behind it.
package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/harperreed/afterwod/internal/kv"
	"github.com/harperreed/afterwod/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	history   storage.Adapter
	kv        kv.Store
	logger    *slog.Logger
}

// NewServer creates a new MCP server over history. store is the kv store the
// migration flag lives in and may be nil, in which case migration_status
// reports only what the adapter knows.
func NewServer(history storage.Adapter, store kv.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "afterwod",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		history:   history,
		kv:        store,
		logger:    logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving mcp on stdio", "backend", s.history.Backend())
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
