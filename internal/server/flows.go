package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intentflow/engine/internal/planner"
	"github.com/intentflow/engine/internal/store"
	"github.com/intentflow/engine/pkg/api"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON payload")
	ErrListFlows   = errors.New("failed to list flows")
	ErrGetFlow     = errors.New("failed to get flow")
	ErrStartFlow   = errors.New("failed to start flow")
)

// flowDetail combines a flow's plan with its outcome, if complete
type flowDetail struct {
	Plan    *api.FlowPlan    `json:"plan"`
	Outcome *api.FlowOutcome `json:"outcome,omitempty"`
}

func (s *Server) listFlows(c *gin.Context) {
	digests, err := s.store.ListDigests(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrListFlows, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.FlowsListResponse{
		Flows: digests,
		Count: len(digests),
	})
}

func (s *Server) startFlow(c *gin.Context) {
	var req api.ExecuteFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	plan, err := s.engine.StartFlow(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, planner.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrStartFlow, err),
			Status: status,
		})
		return
	}

	c.JSON(http.StatusAccepted, api.FlowStartedResponse{
		Message: "flow execution started",
		FlowID:  plan.FlowID,
	})
}

func (s *Server) handlePlanPreview(c *gin.Context) {
	var req api.PlanPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	plan, err := s.engine.PlanFlow(&api.ExecuteFlowRequest{
		Prompt: req.Prompt,
		Wallet: req.Wallet,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, planner.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		})
		return
	}

	c.JSON(http.StatusOK, plan)
}

func (s *Server) getFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	plan, err := s.store.GetPlan(c.Request.Context(), flowID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrFlowNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrGetFlow, err),
			Status: status,
		})
		return
	}

	detail := flowDetail{Plan: plan}
	outcome, err := s.store.GetOutcome(c.Request.Context(), flowID)
	if err == nil {
		detail.Outcome = outcome
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) cancelFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	if err := s.engine.CancelFlow(flowID); err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{
		Message: fmt.Sprintf("cancellation requested for %s", flowID),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Metrics())
}
