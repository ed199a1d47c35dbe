// Package server exposes the HTTP and WebSocket API for flow execution
package server

import (
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/intentflow/engine/internal/engine"
	"github.com/intentflow/engine/internal/store"
)

// Server implements the HTTP API server for the orchestrator
type Server struct {
	engine *engine.Engine
	store  *store.Store
	logger *slog.Logger
}

// NewServer creates a new HTTP API server
func NewServer(eng *engine.Engine, st *store.Store, logger *slog.Logger) *Server {
	return &Server{
		engine: eng,
		store:  st,
		logger: logger,
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return s.logger
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", s.handleHealth)

	// Engine metrics
	router.GET("/engine/metrics", s.handleMetrics)

	// Flow endpoints
	flows := router.Group("/flows")
	{
		flows.GET("", s.listFlows)
		flows.POST("", s.startFlow)
		flows.POST("/plan", s.handlePlanPreview)
		flows.GET("/:flowID", s.getFlow)
		flows.DELETE("/:flowID", s.cancelFlow)

		// WebSocket streaming
		flows.GET("/ws", s.handleWebSocket)
	}

	return router
}
