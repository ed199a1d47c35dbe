package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/engine/internal/assert/helpers"
	"github.com/intentflow/engine/internal/engine"
	"github.com/intentflow/engine/pkg/api"
)

func dialWebSocket(
	t *testing.T, srv *httptest.Server,
) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/flows/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketStreamsFlow(t *testing.T) {
	ag := helpers.NewScriptedAgent(
		helpers.AgentReply{
			Invocation: helpers.Invoke(api.ToolBalanceQuery),
			Delay:      100 * time.Millisecond,
		},
		helpers.AgentReply{
			Invocation: helpers.Invoke(api.ToolPositionQuery),
		},
	)
	ex := helpers.NewScriptedExecutor(
		helpers.ExecReply{Result: helpers.Success(`{}`)},
	)
	env := testServer(t, ag, ex)

	httpServer := httptest.NewServer(env.Router)
	defer httpServer.Close()

	w := postJSON(t, env.Router, "/flows", api.ExecuteFlowRequest{
		Prompt: "what are my positions?",
		Wallet: helpers.Wallet(),
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var started api.FlowStartedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	conn := dialWebSocket(t, httpServer)
	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type:   "subscribe",
		FlowID: started.FlowID,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var events []api.WebSocketEvent
	for {
		var event api.WebSocketEvent
		if err := conn.ReadJSON(&event); err != nil {
			break
		}
		events = append(events, event)
		if event.Type == engine.EventFlowCompleted {
			break
		}
	}

	require.NotEmpty(t, events)
	assert.Equal(t, engine.EventStepResult, events[0].Type)
	assert.Equal(t, started.FlowID, events[0].FlowID)

	last := events[len(events)-1]
	assert.Equal(t, engine.EventFlowCompleted, last.Type)
	require.NotNil(t, last.Outcome)
	assert.Len(t, last.Outcome.StepResults, 2)
}

func TestWebSocketUnknownFlow(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	httpServer := httptest.NewServer(env.Router)
	defer httpServer.Close()

	conn := dialWebSocket(t, httpServer)
	require.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type:   "subscribe",
		FlowID: "flow-missing",
	}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var res api.ErrorResponse
	require.NoError(t, conn.ReadJSON(&res))
	assert.Contains(t, res.Error, "not active")
}
