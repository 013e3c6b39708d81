// Continuum MCP Server - Exposes Continuum capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/continuum-sec/continuum/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:      envOrDefault("CONTINUUM_API_URL", "http://localhost:8080"),
		AdminSecret: os.Getenv("CONTINUUM_ADMIN_SECRET"),
	}

	// AdminSecret is optional; only the flag_user tool needs it.
	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
