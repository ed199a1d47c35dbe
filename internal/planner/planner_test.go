package planner_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentflow/engine/internal/planner"
	"github.com/intentflow/engine/pkg/api"
)

func fundedWallet() api.WalletContext {
	return api.WalletContext{
		Owner:      "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		SolBalance: 5 * api.LamportsPerSol,
		TokenBalances: map[string]api.TokenBalance{
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {
				Amount: 250_000_000, Decimals: 6,
			},
		},
	}
}

func TestPlanSwap(t *testing.T) {
	p := planner.New()

	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt: "Swap 2 SOL for USDC",
		Wallet: fundedWallet(),
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	assert.NotEmpty(t, plan.FlowID)
	assert.Equal(t, api.AtomicStrict, plan.AtomicMode)
	assert.Equal(t, "swap", plan.Metadata.Category)

	assert.False(t, plan.Steps[0].Critical)
	assert.True(t, plan.Steps[0].AllowsTool(api.ToolBalanceQuery))
	assert.True(t, plan.Steps[1].Critical)
	assert.True(t, plan.Steps[1].AllowsTool(api.ToolSwap))
}

func TestPlanComplex(t *testing.T) {
	p := planner.New()

	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt: "Swap 1 SOL to USDC and then lend it out",
		Wallet: fundedWallet(),
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	assert.Equal(t, "complex", plan.Metadata.Category)
	assert.Equal(t,
		[]api.StepID{"step-2", "step-3"}, plan.CriticalSteps())
	assert.True(t, plan.Steps[1].AllowsTool(api.ToolSwap))
	assert.True(t, plan.Steps[2].AllowsTool(api.ToolDeposit))
}

func TestPlanWithdraw(t *testing.T) {
	p := planner.New()

	// withdraw does not require spendable balance
	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt: "Withdraw my USDC position",
		Wallet: api.WalletContext{Owner: "someone"},
	})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.True(t, plan.Steps[0].Critical)
	assert.True(t, plan.Steps[0].AllowsTool(api.ToolWithdraw))
	assert.False(t, plan.Steps[1].Critical)
}

func TestPlanPositionsFallback(t *testing.T) {
	p := planner.New()

	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt: "What's going on with my account?",
		Wallet: api.WalletContext{Owner: "someone"},
	})
	require.NoError(t, err)
	assert.Equal(t, "positions", plan.Metadata.Category)
	assert.Empty(t, plan.CriticalSteps())
}

func TestPlanRejections(t *testing.T) {
	p := planner.New(planner.WithMaxPromptLength(64))

	t.Run("empty_prompt", func(t *testing.T) {
		_, err := p.Plan(&api.ExecuteFlowRequest{
			Prompt: "   ",
			Wallet: fundedWallet(),
		})
		assert.ErrorIs(t, err, planner.ErrInvalidRequest)
		assert.ErrorIs(t, err, planner.ErrPromptEmpty)
	})

	t.Run("prompt_too_long", func(t *testing.T) {
		_, err := p.Plan(&api.ExecuteFlowRequest{
			Prompt: strings.Repeat("swap sol ", 20),
			Wallet: fundedWallet(),
		})
		assert.ErrorIs(t, err, planner.ErrPromptTooLong)
	})

	t.Run("blocked_keyword", func(t *testing.T) {
		_, err := p.Plan(&api.ExecuteFlowRequest{
			Prompt: "swap using my seed phrase",
			Wallet: fundedWallet(),
		})
		assert.ErrorIs(t, err, planner.ErrPromptBlocked)
	})

	t.Run("no_spendable_balance", func(t *testing.T) {
		_, err := p.Plan(&api.ExecuteFlowRequest{
			Prompt: "Swap 2 SOL for USDC",
			Wallet: api.WalletContext{Owner: "broke"},
		})
		assert.ErrorIs(t, err, planner.ErrNoSpendableBalance)
	})
}

func TestPlanOverrides(t *testing.T) {
	p := planner.New()

	rc := api.DefaultRecoveryConfig()
	rc.MaxRecoveryTime = 60 * api.Second

	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt:     "Deposit 100 USDC for yield",
		Wallet:     fundedWallet(),
		AtomicMode: api.AtomicLenient,
		Recovery:   &rc,
	})
	require.NoError(t, err)
	assert.Equal(t, api.AtomicLenient, plan.AtomicMode)
	assert.Equal(t, int64(60*api.Second), plan.Recovery.MaxRecoveryTime)
}

func TestAnalyzeIntentAmounts(t *testing.T) {
	intent := planner.AnalyzeIntent("Swap 2.5 SOL for 300 USDC")
	assert.Equal(t, planner.IntentSwap, intent.Type)
	assert.Equal(t, "2.5", intent.SolAmount)
	assert.Equal(t, "300", intent.UsdcAmount)

	intent = planner.AnalyzeIntent("lend 50% of my balance")
	assert.Equal(t, planner.IntentDeposit, intent.Type)
	assert.Equal(t, "50", intent.Percentage)
}

func TestAlternative(t *testing.T) {
	p := planner.New()

	plan, err := p.Plan(&api.ExecuteFlowRequest{
		Prompt: "Swap 2 SOL for USDC",
		Wallet: fundedWallet(),
	})
	require.NoError(t, err)

	t.Run("mutating_step", func(t *testing.T) {
		alt, err := p.Alternative(plan, &plan.Steps[1])
		require.NoError(t, err)
		assert.Equal(t, plan.Steps[1].ID+"-alt", alt.ID)
		assert.Equal(t, plan.Steps[1].RequiredTools, alt.RequiredTools)
		assert.Contains(t, alt.Prompt, "alternative route")
	})

	t.Run("query_step", func(t *testing.T) {
		_, err := p.Alternative(plan, &plan.Steps[0])
		assert.ErrorIs(t, err, planner.ErrNoAlternative)
	})
}
