package engine

import (
	"sync"
	"time"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// staleAfter is how old a leg's snapshot may be before the symbol is
// excluded from entry and exit evaluation.
const staleAfter = 30 * time.Second

type symbolPrices struct {
	spot           models.PriceSnapshot
	futures        models.PriceSnapshot
	liquidityScore float64
}

// PriceBook is the in-memory table of the latest known spot and futures
// price per symbol. Each (symbol, leg) cell has one logical writer at a
// time, either the batch refresher or that leg's streaming task; the lock
// makes the last-writer-wins overlap between them safe.
type PriceBook struct {
	mu     sync.RWMutex
	table  map[string]*symbolPrices
	byInst map[string]instRef
}

type instRef struct {
	symbol string
	leg    models.MarketLeg
}

func NewPriceBook() *PriceBook {
	return &PriceBook{
		table:  make(map[string]*symbolPrices),
		byInst: make(map[string]instRef),
	}
}

// Seed installs a symbol's initial snapshots from universe discovery.
func (b *PriceBook) Seed(symbol string, spot, futures models.PriceSnapshot, liquidityScore float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.table[symbol] = &symbolPrices{
		spot:           spot,
		futures:        futures,
		liquidityScore: liquidityScore,
	}
	if spot.InstID != "" {
		b.byInst[spot.InstID] = instRef{symbol: symbol, leg: models.LegSpot}
	}
	if futures.InstID != "" {
		b.byInst[futures.InstID] = instRef{symbol: symbol, leg: models.LegFutures}
	}
}

// SetPrice updates one leg's price and stamps it as fresh now.
func (b *PriceBook) SetPrice(symbol string, leg models.MarketLeg, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cell, ok := b.table[symbol]
	if !ok {
		return
	}
	switch leg {
	case models.LegSpot:
		cell.spot.Price = price
		cell.spot.UpdatedAt = time.Now()
	case models.LegFutures:
		cell.futures.Price = price
		cell.futures.UpdatedAt = time.Now()
	}
}

// Pair returns both legs' snapshots for a symbol.
func (b *PriceBook) Pair(symbol string) (spot, futures models.PriceSnapshot, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cell, ok := b.table[symbol]
	if !ok {
		return models.PriceSnapshot{}, models.PriceSnapshot{}, false
	}
	return cell.spot, cell.futures, true
}

// PriceByInstID resolves a price through the instrument-id index. Returns 0
// for unknown instruments.
func (b *PriceBook) PriceByInstID(instID string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ref, ok := b.byInst[instID]
	if !ok {
		return 0
	}
	cell := b.table[ref.symbol]
	if ref.leg == models.LegSpot {
		return cell.spot.Price
	}
	return cell.futures.Price
}

func (b *PriceBook) LiquidityScore(symbol string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if cell, ok := b.table[symbol]; ok {
		return cell.liquidityScore
	}
	return 0
}

// Fresh reports whether both legs have a strictly positive price updated
// within the staleness window. Symbols failing this are skipped for both
// entry and exit evaluation.
func (b *PriceBook) Fresh(symbol string) bool {
	spot, futures, ok := b.Pair(symbol)
	if !ok {
		return false
	}
	now := time.Now()
	return spot.Price > 0 && futures.Price > 0 &&
		now.Sub(spot.UpdatedAt) < staleAfter &&
		now.Sub(futures.UpdatedAt) < staleAfter
}

// FeedStatus summarizes one symbol's feed health for status reporting.
type FeedStatus struct {
	Symbol       string
	SpotPrice    float64
	FuturesPrice float64
	SpotAge      time.Duration
	FuturesAge   time.Duration
	Valid        bool
}

func (b *PriceBook) Status(symbol string) FeedStatus {
	spot, futures, ok := b.Pair(symbol)
	if !ok {
		return FeedStatus{Symbol: symbol}
	}
	now := time.Now()
	return FeedStatus{
		Symbol:       symbol,
		SpotPrice:    spot.Price,
		FuturesPrice: futures.Price,
		SpotAge:      now.Sub(spot.UpdatedAt),
		FuturesAge:   now.Sub(futures.UpdatedAt),
		Valid:        b.Fresh(symbol),
	}
}
