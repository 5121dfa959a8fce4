package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// Universe is the discovered set of tradable spot/perpetual pairs, ranked by
// liquidity. The active set (top K) gets trading attention; the full ranking
// stays visible for listing.
type Universe struct {
	Symbols   map[string]models.SymbolInfo
	Ranked    []models.SymbolRanking
	ActiveSet []string

	// Fallback is set when discovery produced no pairs and the hardcoded
	// majors were substituted, so callers can tell degraded mode apart
	// from a real ranking.
	Fallback bool
}

type pairCandidate struct {
	info     models.SymbolInfo
	spot     models.Ticker
	futures  models.Ticker
	score    float64
}

// BuildUniverse matches spot instruments quoted in quoteCcy against the
// perpetual swap sharing the same base asset and ranks the pairs by combined
// 24h USD volume. An empty result falls back to the major symbols.
func BuildUniverse(spotTickers, futuresTickers []models.Ticker, quoteCcy string, activeSize int) *Universe {
	spotSuffix := "-" + quoteCcy
	swapSuffix := "-" + quoteCcy + "-SWAP"

	futuresByBase := make(map[string]models.Ticker)
	for _, t := range futuresTickers {
		if strings.HasSuffix(t.InstID, swapSuffix) {
			base := strings.TrimSuffix(t.InstID, swapSuffix)
			futuresByBase[base] = t
		}
	}

	var candidates []pairCandidate
	for _, spot := range spotTickers {
		if !strings.HasSuffix(spot.InstID, spotSuffix) || strings.HasSuffix(spot.InstID, swapSuffix) {
			continue
		}
		base := strings.TrimSuffix(spot.InstID, spotSuffix)
		futures, ok := futuresByBase[base]
		if !ok {
			continue
		}

		score := spot.Volume24h*spot.LastPrice + futures.Volume24h*futures.LastPrice
		candidates = append(candidates, pairCandidate{
			info: models.SymbolInfo{
				Symbol:            base + "-" + quoteCcy,
				SpotInstID:        spot.InstID,
				FuturesInstID:     futures.InstID,
				BaseCurrency:      base,
				QuoteCurrency:     quoteCcy,
				MinOrderSize:      0.001,
				PricePrecision:    8,
				QuantityPrecision: 8,
				IsActive:          true,
			},
			spot:    spot,
			futures: futures,
			score:   score,
		})
	}

	if len(candidates) == 0 {
		return fallbackUniverse(quoteCcy, activeSize)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	u := &Universe{
		Symbols: make(map[string]models.SymbolInfo, len(candidates)),
		Ranked:  make([]models.SymbolRanking, 0, len(candidates)),
	}
	for _, c := range candidates {
		u.Symbols[c.info.Symbol] = c.info
		u.Ranked = append(u.Ranked, models.SymbolRanking{
			Symbol:         c.info.Symbol,
			SpotPrice:      c.spot.LastPrice,
			FuturesPrice:   c.futures.LastPrice,
			LiquidityScore: c.score,
		})
		if len(u.ActiveSet) < activeSize {
			u.ActiveSet = append(u.ActiveSet, c.info.Symbol)
		}
	}
	return u
}

// fallbackUniverse keeps the engine operable when discovery fails. Scores
// are placeholders for ordering only; prices arrive with the first refresh.
func fallbackUniverse(quoteCcy string, activeSize int) *Universe {
	majors := []struct {
		base  string
		score float64
	}{
		{"BTC", 1_000_000},
		{"ETH", 800_000},
		{"SOL", 600_000},
	}

	u := &Universe{
		Symbols:  make(map[string]models.SymbolInfo, len(majors)),
		Fallback: true,
	}
	for _, m := range majors {
		symbol := m.base + "-" + quoteCcy
		u.Symbols[symbol] = models.SymbolInfo{
			Symbol:            symbol,
			SpotInstID:        symbol,
			FuturesInstID:     symbol + "-SWAP",
			BaseCurrency:      m.base,
			QuoteCurrency:     quoteCcy,
			MinOrderSize:      0.001,
			PricePrecision:    8,
			QuantityPrecision: 8,
			IsActive:          true,
		}
		u.Ranked = append(u.Ranked, models.SymbolRanking{Symbol: symbol, LiquidityScore: m.score})
		if len(u.ActiveSet) < activeSize {
			u.ActiveSet = append(u.ActiveSet, symbol)
		}
	}
	return u
}

// SeedPriceBook installs the discovery-time ticker data as initial snapshots.
func (u *Universe) SeedPriceBook(book *PriceBook, spotTickers, futuresTickers []models.Ticker) {
	spotByInst := make(map[string]models.Ticker, len(spotTickers))
	for _, t := range spotTickers {
		spotByInst[t.InstID] = t
	}
	futuresByInst := make(map[string]models.Ticker, len(futuresTickers))
	for _, t := range futuresTickers {
		futuresByInst[t.InstID] = t
	}

	now := time.Now()
	for symbol, info := range u.Symbols {
		spot := spotByInst[info.SpotInstID]
		futures := futuresByInst[info.FuturesInstID]

		var score float64
		for _, r := range u.Ranked {
			if r.Symbol == symbol {
				score = r.LiquidityScore
				break
			}
		}

		// Freshness is measured against local receive time, not the
		// exchange timestamp. A leg with no discovery price stays at the
		// zero time and reads as stale until the first refresh lands.
		spotSnap := models.PriceSnapshot{
			InstID:    info.SpotInstID,
			Price:     spot.LastPrice,
			Volume24h: spot.Volume24h,
		}
		if spot.LastPrice > 0 {
			spotSnap.UpdatedAt = now
		}
		futuresSnap := models.PriceSnapshot{
			InstID:    info.FuturesInstID,
			Price:     futures.LastPrice,
			Volume24h: futures.Volume24h,
		}
		if futures.LastPrice > 0 {
			futuresSnap.UpdatedAt = now
		}

		book.Seed(symbol, spotSnap, futuresSnap, score)
	}
}
