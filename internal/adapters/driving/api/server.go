// Package api exposes retrieval and answering over a JSON REST API built on gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// ServiceName identifies spans created by the API.
const ServiceName = "ragkit-api"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("api: retrieval service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Retrieval driving.RetrievalService
	Answer    driving.AnswerService
	Index     driving.IndexService
}

// Server serves the REST API.
type Server struct {
	ports  Ports
	router *gin.Engine
}

// NewServer creates a server with its routes registered.
func NewServer(ports Ports) (*Server, error) {
	if ports.Retrieval == nil {
		return nil, ErrMissingRetrievalService
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(enrichTrace())
	router.Use(accessLog())

	s := &Server{ports: ports, router: router}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealth)

	v1 := s.router.Group("/v1")
	v1.GET("/stats", s.handleStats)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.POST("/ask", s.handleAsk)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
