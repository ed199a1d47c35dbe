package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/engine/internal/agent"
	"github.com/intentflow/engine/pkg/api"
)

func stepRequest() *agent.Request {
	return &agent.Request{
		FlowID:       "flow-1",
		StepID:       "step-1",
		Prompt:       "swap 1 sol for usdc",
		AllowedTools: []api.ToolName{api.ToolSwap},
	}
}

func TestHTTPAgentInvoke(t *testing.T) {
	var received agent.Request
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t,
				json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(
				`{"tool":"swap","args":{"from_mint":"a","to_mint":"b","amount":1}}`,
			))
		},
	))
	defer srv.Close()

	a := agent.NewHTTPAgent(srv.URL, time.Second)
	inv, err := a.Invoke(context.Background(), stepRequest())
	require.NoError(t, err)
	assert.Equal(t, api.ToolSwap, inv.Tool)
	assert.NoError(t, inv.Validate())

	assert.Equal(t, api.FlowID("flow-1"), received.FlowID)
	assert.Equal(t, "swap 1 sol for usdc", received.Prompt)
	assert.Equal(t, []api.ToolName{api.ToolSwap}, received.AllowedTools)
}

func TestHTTPAgentErrors(t *testing.T) {
	t.Run("undefined_endpoint", func(t *testing.T) {
		a := agent.NewHTTPAgent("", time.Second)
		_, err := a.Invoke(context.Background(), stepRequest())
		assert.ErrorIs(t, err, agent.ErrEndpointUndefined)
	})

	t.Run("http_error_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		))
		defer srv.Close()

		a := agent.NewHTTPAgent(srv.URL, time.Second)
		_, err := a.Invoke(context.Background(), stepRequest())
		assert.ErrorIs(t, err, agent.ErrAgentHTTPError)
	})

	t.Run("empty_reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		))
		defer srv.Close()

		a := agent.NewHTTPAgent(srv.URL, time.Second)
		_, err := a.Invoke(context.Background(), stepRequest())
		assert.ErrorIs(t, err, agent.ErrAgentEmptyReply)
	})

	t.Run("deadline_expiry", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				<-r.Context().Done()
			},
		))
		defer srv.Close()

		a := agent.NewHTTPAgent(srv.URL, time.Second)
		ctx, cancel := context.WithTimeout(
			context.Background(), 20*time.Millisecond,
		)
		defer cancel()

		_, err := a.Invoke(ctx, stepRequest())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
