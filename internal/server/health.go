package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	root "github.com/intentflow/engine"
	"github.com/intentflow/engine/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if err := s.store.Ping(c.Request.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, api.HealthResponse{
		Service: root.Name,
		Version: root.Version,
		Status:  status,
	})
}
