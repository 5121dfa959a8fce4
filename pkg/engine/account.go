package engine

import (
	"fmt"
	"sync"
)

// Account tracks currency balances and outstanding margin borrows. It is
// mutated only by the trading loop's entry/exit path; the lock covers reads
// from the health check and the status API.
type Account struct {
	mu       sync.RWMutex
	balances map[string]float64
	borrowed map[string]float64
}

func NewAccount() *Account {
	return &Account{
		balances: make(map[string]float64),
		borrowed: make(map[string]float64),
	}
}

// SeedSimulated installs the paper-trading starting balances.
func (a *Account) SeedSimulated(quoteCurrency string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[quoteCurrency] = 100_000
	a.balances["BTC"] = 0
	a.balances["ETH"] = 0
}

func (a *Account) Borrow(currency string, amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.borrowed[currency] += amount
}

// Repay reduces the outstanding borrow for a currency. The balance floors
// at zero; the returned overshoot is nonzero when more was repaid than was
// ever borrowed, which points at a bookkeeping inconsistency upstream.
func (a *Account) Repay(currency string, amount float64) (overshoot float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	remaining := a.borrowed[currency] - amount
	if remaining < 0 {
		overshoot = -remaining
		remaining = 0
	}
	a.borrowed[currency] = remaining
	return overshoot
}

func (a *Account) Balances() map[string]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]float64, len(a.balances))
	for ccy, bal := range a.balances {
		out[ccy] = bal
	}
	return out
}

func (a *Account) Borrowed() map[string]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]float64, len(a.borrowed))
	for ccy, amt := range a.borrowed {
		out[ccy] = amt
	}
	return out
}

// Validate re-checks the account invariants the health check relies on.
func (a *Account) Validate() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.balances == nil || a.borrowed == nil {
		return fmt.Errorf("account state not initialized")
	}
	for ccy, amt := range a.borrowed {
		if amt < 0 {
			return fmt.Errorf("negative borrowed balance: %s %v", ccy, amt)
		}
	}
	for ccy, bal := range a.balances {
		if bal < 0 {
			return fmt.Errorf("negative balance: %s %v", ccy, bal)
		}
	}
	return nil
}
