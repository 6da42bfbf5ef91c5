package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Question string   `json:"question" jsonschema:"the question to find relevant passages for"`
	K        int      `json:"k,omitempty" jsonschema:"maximum number of passages to return (default from settings)"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"drop passages scoring worse than this"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
}

// PassageOutput represents a single retrieved passage.
type PassageOutput struct {
	ID          int64   `json:"id"`
	DocumentID  string  `json:"document_id"`
	Text        string  `json:"text"`
	OffsetStart int     `json:"offset_start"`
	OffsetEnd   int     `json:"offset_end"`
	Score       float64 `json:"score"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages used as context (default from settings)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer   string          `json:"answer"`
	Degraded bool            `json:"degraded"`
	Reason   string          `json:"reason,omitempty"`
	Sources  []PassageOutput `json:"sources"`
}

// StatsInput is the (empty) input schema for the index_stats tool.
type StatsInput struct{}

// errNoAnswerService is returned by the ask tool when no answer service is wired.
var errNoAnswerService = errors.New("answering is not configured")

// errNoIndexService is returned by the index_stats tool when no index service is wired.
var errNoIndexService = errors.New("index is not configured")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the indexed passages most relevant to a question",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only the indexed documents as context",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Describe the loaded vector index",
	}, s.handleStats)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := domain.RetrieveOptions{K: input.K, MinScore: input.MinScore}
	results, err := s.ports.Retrieval.Retrieve(ctx, input.Question, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Results: toPassages(results),
		Count:   len(results),
	}, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Answer == nil {
		return nil, AskOutput{}, errNoAnswerService
	}

	answer, err := s.ports.Answer.Ask(ctx, input.Question, domain.RetrieveOptions{K: input.K})
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:   answer.Text,
		Degraded: answer.Degraded,
		Reason:   answer.Reason,
		Sources:  toPassages(answer.Sources),
	}, nil
}

// handleStats handles the index_stats tool invocation.
func (s *Server) handleStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, domain.IndexStats, error) {
	if s.ports.Index == nil {
		return nil, domain.IndexStats{}, errNoIndexService
	}
	return nil, s.ports.Index.Stats(), nil
}

func toPassages(results []domain.RetrievalResult) []PassageOutput {
	out := make([]PassageOutput, len(results))
	for i := range results {
		out[i] = PassageOutput{
			ID:          results[i].ID,
			DocumentID:  results[i].DocumentID,
			Text:        results[i].Text,
			OffsetStart: results[i].Start,
			OffsetEnd:   results[i].End,
			Score:       results[i].Score,
		}
	}
	return out
}
