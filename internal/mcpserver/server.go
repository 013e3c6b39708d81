package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Continuum tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("continuum", "1.0.0")
	client := NewContinuumClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolAuthenticateSession, h.HandleAuthenticateSession)
	s.AddTool(ToolEnrollUser, h.HandleEnrollUser)
	s.AddTool(ToolGetUserAssessments, h.HandleGetUserAssessments)
	s.AddTool(ToolGetUserProfile, h.HandleGetUserProfile)
	s.AddTool(ToolGetServiceStats, h.HandleGetServiceStats)
	s.AddTool(ToolFlagUser, h.HandleFlagUser)

	return s
}
