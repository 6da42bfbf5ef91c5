package mcp

import (
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval finds the passages most relevant to a question.
	Retrieval driving.RetrievalService

	// Answer generates grounded answers. Optional: the ask tool reports
	// that answering is unavailable when nil.
	Answer driving.AnswerService

	// Index describes the loaded index. Optional.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
