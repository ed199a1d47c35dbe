package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/intentflow/engine/pkg/api"
	"github.com/intentflow/engine/pkg/log"
)

// HTTPAgent bridges the agent contract to an external decision service over
// HTTP. The wire format is JSON in both directions
type HTTPAgent struct {
	httpClient *http.Client
	endpoint   string
}

var (
	ErrAgentHTTPError    = errors.New("agent returned HTTP error")
	ErrAgentEmptyReply   = errors.New("agent returned empty reply")
	ErrEndpointUndefined = errors.New("agent endpoint undefined")
)

var _ Agent = (*HTTPAgent)(nil)

// NewHTTPAgent creates an agent backed by an external HTTP service. The
// client timeout is a transport backstop; per-step deadlines arrive through
// the request context
func NewHTTPAgent(endpoint string, timeout time.Duration) *HTTPAgent {
	return &HTTPAgent{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
	}
}

func (a *HTTPAgent) Invoke(
	ctx context.Context, req *Request,
) (*api.ToolInvocation, error) {
	if a.endpoint == "" {
		return nil, ErrEndpointUndefined
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, "POST", a.endpoint, bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(httpReq)
	dur := time.Since(start)

	if err != nil {
		slog.Error("Agent request failed",
			log.FlowID(req.FlowID),
			log.StepID(req.StepID),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Agent HTTP error",
			log.FlowID(req.FlowID),
			log.StepID(req.StepID),
			slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: HTTP %d", ErrAgentHTTPError,
			resp.StatusCode)
	}

	var invocation api.ToolInvocation
	if err := json.Unmarshal(respBody, &invocation); err != nil {
		return nil, err
	}
	if invocation.Tool == "" {
		return nil, ErrAgentEmptyReply
	}
	return &invocation, nil
}
