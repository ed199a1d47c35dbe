package api

import "math"

type (
	// WalletContext is an immutable snapshot of account state taken at plan
	// creation. It is never refreshed between steps; a step that needs
	// fresher state must request it through the transaction executor
	WalletContext struct {
		Owner         string                  `json:"owner"`
		SolBalance    uint64                  `json:"sol_balance"`
		TokenBalances map[string]TokenBalance `json:"token_balances,omitempty"`
		TokenPrices   map[string]float64      `json:"token_prices,omitempty"`
		TotalValueUSD float64                 `json:"total_value_usd"`
	}

	// TokenBalance holds the raw balance and decimals for one token mint
	TokenBalance struct {
		Amount   uint64 `json:"amount"`
		Decimals uint8  `json:"decimals"`
	}
)

const (
	// SolMint is the native mint address used for price lookups
	SolMint = "So11111111111111111111111111111111111111112"

	// LamportsPerSol converts raw SOL balances to whole units
	LamportsPerSol = 1_000_000_000
)

// SolBalanceSol returns the SOL balance in whole units
func (w *WalletContext) SolBalanceSol() float64 {
	return float64(w.SolBalance) / LamportsPerSol
}

// TokenBalanceOf returns the balance entry for a mint, if any
func (w *WalletContext) TokenBalanceOf(mint string) (TokenBalance, bool) {
	b, ok := w.TokenBalances[mint]
	return b, ok
}

// TokenPriceOf returns the USD price for a mint, if known
func (w *WalletContext) TokenPriceOf(mint string) (float64, bool) {
	p, ok := w.TokenPrices[mint]
	return p, ok
}

// HasSpendableBalance returns whether the wallet holds any balance a
// spending operation could draw on
func (w *WalletContext) HasSpendableBalance() bool {
	if w.SolBalance > 0 {
		return true
	}
	for _, b := range w.TokenBalances {
		if b.Amount > 0 {
			return true
		}
	}
	return false
}

// TotalValue recomputes the portfolio value in USD from balances and prices
func (w *WalletContext) TotalValue() float64 {
	solPrice, ok := w.TokenPriceOf(SolMint)
	if !ok {
		solPrice = 0
	}
	total := w.SolBalanceSol() * solPrice

	for mint, balance := range w.TokenBalances {
		price, ok := w.TokenPriceOf(mint)
		if !ok {
			continue
		}
		amount := float64(balance.Amount) /
			math.Pow10(int(balance.Decimals))
		total += amount * price
	}
	return total
}
