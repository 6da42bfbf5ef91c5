// Package mcp provides an MCP (Model Context Protocol) server adapter for ragkit.
// It lets AI assistants retrieve indexed passages and ask grounded questions.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
