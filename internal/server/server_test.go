package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/engine/internal/assert/helpers"
	"github.com/intentflow/engine/internal/config"
	"github.com/intentflow/engine/internal/engine"
	"github.com/intentflow/engine/internal/planner"
	"github.com/intentflow/engine/internal/server"
	"github.com/intentflow/engine/internal/store"
	"github.com/intentflow/engine/pkg/api"
)

type testServerEnv struct {
	Server *server.Server
	Engine *engine.Engine
	Store  *store.Store
	Router *gin.Engine
}

func testServer(
	t *testing.T, ag *helpers.ScriptedAgent, ex *helpers.ScriptedExecutor,
) *testServerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	redis := miniredis.RunT(t)
	st := store.New(&config.StoreConfig{
		Addr:   redis.Addr(),
		Prefix: "test",
	}, helpers.Logger())
	t.Cleanup(func() { _ = st.Close() })

	eng := engine.New(
		helpers.TestConfig(), planner.New(), ag, ex, st, nil,
		helpers.Logger(),
	)
	srv := server.NewServer(eng, st, helpers.Logger())
	return &testServerEnv{
		Server: srv,
		Engine: eng,
		Store:  st,
		Router: srv.SetupRoutes(),
	}
}

func happyAgents() (*helpers.ScriptedAgent, *helpers.ScriptedExecutor) {
	ag := helpers.NewScriptedAgent(
		helpers.AgentReply{Invocation: helpers.Invoke(api.ToolBalanceQuery)},
		helpers.AgentReply{Invocation: helpers.Invoke(api.ToolSwap)},
	)
	ex := helpers.NewScriptedExecutor(
		helpers.ExecReply{Result: helpers.Success(`{}`)},
	)
	return ag, ex
}

func postJSON(
	t *testing.T, router *gin.Engine, path string, payload any,
) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "intentflow", res.Service)
	assert.Equal(t, "healthy", res.Status)
}

func TestStartFlowEndpoint(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	w := postJSON(t, env.Router, "/flows", api.ExecuteFlowRequest{
		Prompt: "swap 1 sol for usdc",
		Wallet: helpers.Wallet(),
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	var res api.FlowStartedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.NotEmpty(t, res.FlowID)
}

func TestStartFlowRejectsBadRequests(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	t.Run("empty_prompt", func(t *testing.T) {
		w := postJSON(t, env.Router, "/flows", api.ExecuteFlowRequest{
			Wallet: helpers.Wallet(),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed_json", func(t *testing.T) {
		req := httptest.NewRequest(
			"POST", "/flows", bytes.NewReader([]byte("{not json")),
		)
		w := httptest.NewRecorder()
		env.Router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no_spendable_balance", func(t *testing.T) {
		w := postJSON(t, env.Router, "/flows", api.ExecuteFlowRequest{
			Prompt: "swap 1 sol for usdc",
			Wallet: api.WalletContext{Owner: "broke"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPlanPreviewEndpoint(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	w := postJSON(t, env.Router, "/flows/plan", api.PlanPreviewRequest{
		Prompt: "swap 2 sol for usdc then lend it",
		Wallet: helpers.Wallet(),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var plan api.FlowPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Len(t, plan.Steps, 3)
	assert.Equal(t, "complex", plan.Metadata.Category)

	// preview does not start execution
	req := httptest.NewRequest("GET", "/flows", nil)
	lw := httptest.NewRecorder()
	env.Router.ServeHTTP(lw, req)

	var list api.FlowsListResponse
	require.NoError(t, json.Unmarshal(lw.Body.Bytes(), &list))
	assert.Zero(t, list.Count)
}

func TestGetFlowEndpoint(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	w := postJSON(t, env.Router, "/flows", api.ExecuteFlowRequest{
		Prompt: "check my balances",
		Wallet: helpers.Wallet(),
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var started api.FlowStartedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	assert.Eventually(t, func() bool {
		req := httptest.NewRequest(
			"GET", "/flows/"+string(started.FlowID), nil,
		)
		gw := httptest.NewRecorder()
		env.Router.ServeHTTP(gw, req)
		if gw.Code != http.StatusOK {
			return false
		}
		var detail struct {
			Plan    *api.FlowPlan    `json:"plan"`
			Outcome *api.FlowOutcome `json:"outcome"`
		}
		if err := json.Unmarshal(gw.Body.Bytes(), &detail); err != nil {
			return false
		}
		return detail.Plan != nil && detail.Outcome != nil
	}, 2*time.Second, 50*time.Millisecond)
}

func TestGetFlowNotFound(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	req := httptest.NewRequest("GET", "/flows/flow-missing", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelFlowNotActive(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	req := httptest.NewRequest("DELETE", "/flows/flow-missing", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ag, ex := happyAgents()
	env := testServer(t, ag, ex)

	req := httptest.NewRequest("GET", "/engine/metrics", nil)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.EngineMetricsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Zero(t, res.TotalFlows)
}
