package helpers

import (
	"io"
	"log/slog"

	"github.com/intentflow/engine/internal/config"
	"github.com/intentflow/engine/pkg/api"
)

// Logger returns a logger that discards everything
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestConfig returns a config with deadlines and recovery delays shrunk so
// timeout and retry paths run quickly
func TestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.StepTimeoutFloor = 50
	cfg.StepTimeoutCeiling = 500
	cfg.Recovery = FastRecovery()
	return cfg
}

// FastRecovery returns a recovery policy with millisecond-scale delays
func FastRecovery() api.RecoveryConfig {
	return api.RecoveryConfig{
		BaseRetryDelay:    5,
		MaxRetryDelay:     20,
		BackoffMultiplier: 2.0,
		MaxRecoveryTime:   200,
		AlternativeFlows:  false,
	}
}

// Wallet returns a funded wallet snapshot
func Wallet() api.WalletContext {
	return api.WalletContext{
		Owner:      "test-owner",
		SolBalance: 5 * api.LamportsPerSol,
		TokenBalances: map[string]api.TokenBalance{
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {
				Amount: 250_000_000, Decimals: 6,
			},
		},
		TokenPrices: map[string]float64{
			api.SolMint: 150.0,
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 1.0,
		},
	}
}

// Plan builds a validated plan around the given steps
func Plan(mode api.AtomicMode, steps ...api.Step) *api.FlowPlan {
	return &api.FlowPlan{
		FlowID:     api.NewFlowID(),
		UserPrompt: "test flow",
		Steps:      steps,
		Wallet:     Wallet(),
		AtomicMode: mode,
		Recovery:   FastRecovery(),
		Metadata:   api.NewMetadata("test"),
	}
}

// QueryStep builds a non-critical balance-check step
func QueryStep(id api.StepID) api.Step {
	return api.Step{
		ID:            id,
		Prompt:        "check balances",
		RequiredTools: []api.ToolName{api.ToolBalanceQuery},
		TimeBudget:    100,
	}
}

// CriticalStep builds a critical step around a mutating tool
func CriticalStep(id api.StepID, tool api.ToolName) api.Step {
	return api.Step{
		ID:            id,
		Prompt:        "execute " + string(tool),
		RequiredTools: []api.ToolName{tool},
		Critical:      true,
		TimeBudget:    100,
	}
}
