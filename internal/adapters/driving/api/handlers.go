package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Question string   `json:"question"`
	K        int      `json:"k"`
	MinScore *float64 `json:"min_score"`
}

// RetrieveResponse is the body returned by POST /v1/retrieve.
type RetrieveResponse struct {
	Results []domain.RetrievalResult `json:"results"`
	Count   int                      `json:"count"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.ports.Index == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "unavailable",
			Message:   "index is not configured",
			RequestID: c.GetString(requestIDKey),
		})
		return
	}
	c.JSON(http.StatusOK, s.ports.Index.Stats())
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	opts := domain.RetrieveOptions{K: req.K, MinScore: req.MinScore}
	results, err := s.ports.Retrieval.Retrieve(c.Request.Context(), req.Question, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RetrieveResponse{Results: results, Count: len(results)})
}

func (s *Server) handleAsk(c *gin.Context) {
	if s.ports.Answer == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "unavailable",
			Message:   "answering is not configured",
			RequestID: c.GetString(requestIDKey),
		})
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	answer, err := s.ports.Answer.Ask(c.Request.Context(), req.Question, domain.RetrieveOptions{K: req.K})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}
