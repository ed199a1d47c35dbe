package planner

import (
	"regexp"
	"strings"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// IntentType classifies what a user prompt is asking for
	IntentType string

	// Intent is the classified shape of a user request, with any amounts
	// extracted from the prompt text
	Intent struct {
		Type          IntentType
		PrimaryGoal   string
		SolAmount     string
		UsdcAmount    string
		Percentage    string
		RequiredTools []api.ToolName
	}
)

const (
	IntentSwap      IntentType = "swap"
	IntentDeposit   IntentType = "deposit"
	IntentWithdraw  IntentType = "withdraw"
	IntentComplex   IntentType = "complex"
	IntentPositions IntentType = "positions"
)

var (
	solAmountPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*sol`)
	usdcAmountPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*usdc`)
	percentagePattern  = regexp.MustCompile(`(\d+)%`)
	swapKeywords       = []string{"swap", "exchange", "convert"}
	depositKeywords    = []string{"lend", "deposit", "yield", "earn"}
	withdrawKeywords   = []string{"withdraw", "redeem", "cash out"}
	sequenceKeywords   = []string{"then", "and then", "multiply"}
)

// AnalyzeIntent classifies a prompt using keyword heuristics and extracts
// any mentioned amounts. The wallet snapshot is not consulted here; balance
// checks happen during plan validation
func AnalyzeIntent(prompt string) *Intent {
	lower := strings.ToLower(prompt)

	intent := &Intent{
		SolAmount:  firstGroup(solAmountPattern, lower),
		UsdcAmount: firstGroup(usdcAmountPattern, lower),
		Percentage: firstGroup(percentagePattern, lower),
	}

	wantsSwap := containsAny(lower, swapKeywords)
	wantsDeposit := containsAny(lower, depositKeywords)
	sequenced := containsAny(lower, sequenceKeywords)

	switch {
	case wantsSwap && wantsDeposit, sequenced && (wantsSwap || wantsDeposit):
		intent.Type = IntentComplex
		intent.PrimaryGoal = "Multi-step strategy execution"
		intent.RequiredTools = []api.ToolName{
			api.ToolBalanceQuery, api.ToolSwap, api.ToolDeposit,
		}
	case containsAny(lower, withdrawKeywords):
		intent.Type = IntentWithdraw
		intent.PrimaryGoal = "Withdraw deposited funds"
		intent.RequiredTools = []api.ToolName{
			api.ToolWithdraw, api.ToolPositionQuery,
		}
	case wantsDeposit:
		intent.Type = IntentDeposit
		intent.PrimaryGoal = "Deposit funds for yield"
		intent.RequiredTools = []api.ToolName{
			api.ToolBalanceQuery, api.ToolDeposit,
		}
	case wantsSwap:
		intent.Type = IntentSwap
		intent.PrimaryGoal = "Swap tokens between assets"
		intent.RequiredTools = []api.ToolName{
			api.ToolBalanceQuery, api.ToolSwap,
		}
	default:
		intent.Type = IntentPositions
		intent.PrimaryGoal = "Check balances and positions"
		intent.RequiredTools = []api.ToolName{
			api.ToolBalanceQuery, api.ToolPositionQuery,
		}
	}

	return intent
}

// Spends returns whether the intent draws on wallet balances
func (t IntentType) Spends() bool {
	switch t {
	case IntentSwap, IntentDeposit, IntentComplex:
		return true
	default:
		return false
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
