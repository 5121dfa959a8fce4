package models

import (
	"time"
)

type PositionType string

const (
	PositionNone PositionType = "none"
	// PositionContango is long spot, short futures.
	PositionContango PositionType = "contango"
	// PositionBackwardation is short spot, long futures.
	PositionBackwardation PositionType = "backwardation"
)

// Position is an open arbitrage position, one per symbol at most.
type Position struct {
	Symbol            string
	Type              PositionType
	EntryTime         time.Time
	EntrySpotPrice    float64
	EntryFuturesPrice float64
	SpotOrderID       string
	FuturesOrderID    string
	SpotQuantity      float64
	FuturesQuantity   float64
	BorrowedAmount    float64
	BorrowedCurrency  string
	UnrealizedPnL     float64
}

// PortfolioStatus is derived on demand from the position registry and the
// price book; it is never stored.
type PortfolioStatus struct {
	RealizedPnL      float64
	UnrealizedPnL    float64
	CombinedPnL      float64
	PositionCount    int
	AccountBalances  map[string]float64
	BorrowedBalances map[string]float64
}
