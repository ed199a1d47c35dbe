package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/intentflow/engine/pkg/api"
)

// MemoryExecutor is an in-process test environment that applies invocations
// to a mutable copy of a wallet snapshot. Accepted mutations are serialized
// through a single lock, so sharing one instance across flows is safe
type MemoryExecutor struct {
	mu     sync.Mutex
	sol    uint64
	tokens map[string]uint64
	owner  string
}

var _ Executor = (*MemoryExecutor)(nil)

// NewMemoryExecutor seeds a test environment from a wallet snapshot. A nil
// wallet starts the environment empty
func NewMemoryExecutor(wallet *api.WalletContext) *MemoryExecutor {
	if wallet == nil {
		wallet = &api.WalletContext{}
	}
	tokens := make(map[string]uint64, len(wallet.TokenBalances))
	for mint, balance := range wallet.TokenBalances {
		tokens[mint] = balance.Amount
	}
	return &MemoryExecutor{
		sol:    wallet.SolBalance,
		tokens: tokens,
		owner:  wallet.Owner,
	}
}

func (m *MemoryExecutor) Execute(
	ctx context.Context, inv *api.ToolInvocation,
) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch inv.Tool {
	case api.ToolSwap:
		return m.executeSwap(inv.Args)
	case api.ToolTransfer:
		return m.executeTransfer(inv.Args)
	case api.ToolDeposit:
		return m.executeDeposit(inv.Args)
	case api.ToolWithdraw:
		return m.executeWithdraw(inv.Args)
	case api.ToolBalanceQuery:
		return m.executeBalanceQuery()
	case api.ToolPositionQuery:
		return m.executeBalanceQuery()
	default:
		return failure(fmt.Sprintf("unsupported tool: %s", inv.Tool),
			false), nil
	}
}

func (m *MemoryExecutor) executeSwap(args json.RawMessage) (*Result, error) {
	from := gjson.GetBytes(args, "from_mint").String()
	to := gjson.GetBytes(args, "to_mint").String()
	amount := gjson.GetBytes(args, "amount").Uint()

	if !m.debit(from, amount) {
		return failure("insufficient funds for swap", false), nil
	}
	m.credit(to, amount)

	return success(map[string]any{
		"from_mint": from,
		"to_mint":   to,
		"amount":    amount,
	}, fmt.Sprintf("swapped %d from %s to %s", amount, from, to)), nil
}

func (m *MemoryExecutor) executeTransfer(
	args json.RawMessage,
) (*Result, error) {
	to := gjson.GetBytes(args, "to").String()
	amount := gjson.GetBytes(args, "amount").Uint()

	if m.sol < amount {
		return failure("insufficient funds for transfer", false), nil
	}
	m.sol -= amount

	return success(map[string]any{
		"to":     to,
		"amount": amount,
	}, fmt.Sprintf("transferred %d lamports to %s", amount, to)), nil
}

func (m *MemoryExecutor) executeDeposit(
	args json.RawMessage,
) (*Result, error) {
	mint := gjson.GetBytes(args, "mint").String()
	amount := gjson.GetBytes(args, "amount").Uint()

	if !m.debit(mint, amount) {
		return failure("insufficient funds for deposit", false), nil
	}
	deposited := mint + ":deposited"
	m.tokens[deposited] += amount

	return success(map[string]any{
		"mint":   mint,
		"amount": amount,
	}, fmt.Sprintf("deposited %d of %s", amount, mint)), nil
}

func (m *MemoryExecutor) executeWithdraw(
	args json.RawMessage,
) (*Result, error) {
	mint := gjson.GetBytes(args, "mint").String()
	deposited := mint + ":deposited"

	amount := m.tokens[deposited]
	if amount == 0 {
		return failure("no position to withdraw", false), nil
	}
	delete(m.tokens, deposited)
	m.tokens[mint] += amount

	return success(map[string]any{
		"mint":   mint,
		"amount": amount,
	}, fmt.Sprintf("withdrew %d of %s", amount, mint)), nil
}

func (m *MemoryExecutor) executeBalanceQuery() (*Result, error) {
	return success(map[string]any{
		"owner":       m.owner,
		"sol_balance": m.sol,
		"tokens":      m.tokens,
	}, "balance query"), nil
}

func (m *MemoryExecutor) debit(mint string, amount uint64) bool {
	if mint == api.SolMint {
		if m.sol < amount {
			return false
		}
		m.sol -= amount
		return true
	}
	if m.tokens[mint] < amount {
		return false
	}
	m.tokens[mint] -= amount
	return true
}

func (m *MemoryExecutor) credit(mint string, amount uint64) {
	if mint == api.SolMint {
		m.sol += amount
		return
	}
	m.tokens[mint] += amount
}

func success(output map[string]any, logLine string) *Result {
	raw, _ := json.Marshal(output)
	return &Result{
		Success: true,
		Output:  raw,
		Logs:    []string{logLine},
	}
}

func failure(msg string, transient bool) *Result {
	raw, _ := json.Marshal(map[string]any{"error": msg})
	return &Result{
		Output:    raw,
		Transient: transient,
		Logs:      []string{msg},
	}
}
