package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/intentflow/engine/pkg/api"
)

type (
	// Planner turns free-form user prompts into validated flow plans
	Planner struct {
		maxPromptLength int
		recovery        api.RecoveryConfig
	}

	// Option configures a Planner
	Option func(*Planner)
)

const DefaultMaxPromptLength = 2048

var (
	ErrInvalidRequest = errors.New("invalid flow request")
	ErrPromptEmpty    = fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	ErrPromptTooLong  = fmt.Errorf("%w: prompt exceeds maximum length",
		ErrInvalidRequest)
	ErrPromptBlocked = fmt.Errorf("%w: prompt contains a disallowed operation",
		ErrInvalidRequest)
	ErrNoSpendableBalance = fmt.Errorf("%w: wallet has no spendable balance",
		ErrInvalidRequest)
	ErrNoAlternative = errors.New("no alternative available for step")
)

// blockedKeywords name operations the planner refuses outright
var blockedKeywords = []string{
	"private key", "seed phrase", "drain", "exploit",
}

// WithMaxPromptLength overrides the default prompt length cap
func WithMaxPromptLength(n int) Option {
	return func(p *Planner) {
		p.maxPromptLength = n
	}
}

// WithRecoveryConfig sets the recovery defaults stamped onto new plans
func WithRecoveryConfig(rc api.RecoveryConfig) Option {
	return func(p *Planner) {
		p.recovery = rc
	}
}

// New creates a Planner with the provided options applied
func New(opts ...Option) *Planner {
	res := &Planner{
		maxPromptLength: DefaultMaxPromptLength,
		recovery:        api.DefaultRecoveryConfig(),
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Plan analyzes the prompt, builds an ordered step list for the classified
// intent, and returns a validated FlowPlan. Requests that are empty, over
// the length cap, blocked, or unfundable are rejected with ErrInvalidRequest
func (p *Planner) Plan(req *api.ExecuteFlowRequest) (*api.FlowPlan, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if err := p.checkPrompt(prompt); err != nil {
		return nil, err
	}

	intent := AnalyzeIntent(prompt)
	if intent.Type.Spends() && !req.Wallet.HasSpendableBalance() {
		return nil, ErrNoSpendableBalance
	}

	mode := req.AtomicMode
	if mode == "" {
		mode = api.AtomicStrict
	}
	recovery := p.recovery
	if req.Recovery != nil {
		recovery = *req.Recovery
	}

	plan := &api.FlowPlan{
		FlowID:     api.NewFlowID(),
		UserPrompt: prompt,
		Steps:      p.stepsFor(intent, prompt),
		Wallet:     req.Wallet,
		AtomicMode: mode,
		Recovery:   recovery,
		Metadata:   api.NewMetadata(string(intent.Type)),
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Alternative re-plans a single failed step with a narrowed scope. The
// substitute keeps the original step's tool contract but directs the agent
// toward a different route. Steps without a meaningful alternative return
// ErrNoAlternative
func (p *Planner) Alternative(
	plan *api.FlowPlan, step *api.Step,
) (*api.Step, error) {
	if !hasAlternativeRoute(step) {
		return nil, ErrNoAlternative
	}
	res := *step
	res.ID = step.ID + "-alt"
	res.Prompt = fmt.Sprintf(
		"%s Use an alternative route or venue; the primary attempt failed.",
		step.Prompt,
	)
	res.Description = step.Description + " (alternative route)"
	return &res, nil
}

func (p *Planner) checkPrompt(prompt string) error {
	if prompt == "" {
		return ErrPromptEmpty
	}
	if len(prompt) > p.maxPromptLength {
		return ErrPromptTooLong
	}
	lower := strings.ToLower(prompt)
	if containsAny(lower, blockedKeywords) {
		return ErrPromptBlocked
	}
	return nil
}

func (p *Planner) stepsFor(intent *Intent, prompt string) []api.Step {
	switch intent.Type {
	case IntentComplex:
		return []api.Step{
			balanceCheckStep("step-1"),
			toolStep("step-2", api.ToolSwap,
				"Swap the requested amount into the target asset. "+
					"User request: "+prompt),
			toolStep("step-3", api.ToolDeposit,
				"Deposit the swapped tokens into a lending position. "+
					"User request: "+prompt),
		}
	case IntentDeposit:
		return []api.Step{
			balanceCheckStep("step-1"),
			toolStep("step-2", api.ToolDeposit,
				"Deposit the requested amount for yield. "+
					"User request: "+prompt),
		}
	case IntentWithdraw:
		return []api.Step{
			toolStep("step-1", api.ToolWithdraw,
				"Withdraw the requested position. User request: "+prompt),
			positionCheckStep("step-2"),
		}
	case IntentSwap:
		return []api.Step{
			balanceCheckStep("step-1"),
			toolStep("step-2", api.ToolSwap,
				"Swap the requested amount. User request: "+prompt),
		}
	default:
		return []api.Step{
			balanceCheckStep("step-1"),
			positionCheckStep("step-2"),
		}
	}
}

func balanceCheckStep(id api.StepID) api.Step {
	return api.Step{
		ID:            id,
		Prompt:        "Query the wallet's current token balances",
		Description:   "Balance check",
		RequiredTools: []api.ToolName{api.ToolBalanceQuery},
		Critical:      false,
		TimeBudget:    api.ToolBalanceQuery.DefaultTimeBudget(),
	}
}

func positionCheckStep(id api.StepID) api.Step {
	return api.Step{
		ID:            id,
		Prompt:        "Query the wallet's open lending positions",
		Description:   "Position check",
		RequiredTools: []api.ToolName{api.ToolPositionQuery},
		Critical:      false,
		TimeBudget:    api.ToolPositionQuery.DefaultTimeBudget(),
	}
}

func toolStep(id api.StepID, tool api.ToolName, prompt string) api.Step {
	return api.Step{
		ID:            id,
		Prompt:        prompt,
		Description:   capitalize(string(tool)) + " step",
		RequiredTools: []api.ToolName{tool},
		Critical:      tool.Mutates(),
		TimeBudget:    tool.DefaultTimeBudget(),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// hasAlternativeRoute reports whether a step's tool set admits a route
// substitution. Pure queries have nothing to re-route
func hasAlternativeRoute(step *api.Step) bool {
	for _, t := range step.RequiredTools {
		if t.Mutates() {
			return true
		}
	}
	return false
}
