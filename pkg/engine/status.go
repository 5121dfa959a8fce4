package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/pkg/models"
	"github.com/okxcarry/carrytrader/pkg/okx"
)

// PortfolioStatus computes the derived portfolio view on demand and
// refreshes each open position's unrealized mark along the way.
func (e *Engine) PortfolioStatus() models.PortfolioStatus {
	e.posMu.Lock()
	var unrealized float64
	for symbol, pos := range e.positions {
		spot, futures, ok := e.book.Pair(symbol)
		if !ok {
			continue
		}
		pos.UnrealizedPnL = positionPnL(pos, spot.Price, futures.Price)
		unrealized += pos.UnrealizedPnL
	}
	realized := e.realizedPnL
	count := len(e.positions)
	e.posMu.Unlock()

	return models.PortfolioStatus{
		RealizedPnL:      realized,
		UnrealizedPnL:    unrealized,
		CombinedPnL:      realized + unrealized,
		PositionCount:    count,
		AccountBalances:  e.account.Balances(),
		BorrowedBalances: e.account.Borrowed(),
	}
}

// Positions returns a copy of the open position registry.
func (e *Engine) Positions() []models.Position {
	e.posMu.RLock()
	defer e.posMu.RUnlock()

	out := make([]models.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, *pos)
	}
	return out
}

// UniverseRanking exposes the full liquidity ranking and whether the
// fallback set is in use.
func (e *Engine) UniverseRanking() ([]models.SymbolRanking, bool) {
	if e.universe == nil {
		return nil, false
	}
	ranked := make([]models.SymbolRanking, len(e.universe.Ranked))
	copy(ranked, e.universe.Ranked)
	return ranked, e.universe.Fallback
}

// FeedStatuses reports feed health for every active-set symbol.
func (e *Engine) FeedStatuses() []FeedStatus {
	if e.universe == nil {
		return nil
	}
	out := make([]FeedStatus, 0, len(e.universe.ActiveSet))
	for _, symbol := range e.universe.ActiveSet {
		out = append(out, e.book.Status(symbol))
	}
	return out
}

// FundingRates returns the latest funding rates seen for open positions.
func (e *Engine) FundingRates() map[string]okx.FundingRate {
	e.fundingMu.RLock()
	defer e.fundingMu.RUnlock()

	out := make(map[string]okx.FundingRate, len(e.fundingRates))
	for symbol, rate := range e.fundingRates {
		out[symbol] = rate
	}
	return out
}

func (e *Engine) displayPortfolioStatus() {
	status := e.PortfolioStatus()

	e.logger.WithFields(logrus.Fields{
		"positions":      status.PositionCount,
		"realized_pnl":   status.RealizedPnL,
		"unrealized_pnl": status.UnrealizedPnL,
		"combined_pnl":   status.CombinedPnL,
	}).Info("Portfolio status")

	for ccy, bal := range status.AccountBalances {
		if bal > 0 {
			e.logger.WithFields(logrus.Fields{"currency": ccy, "balance": bal}).Info("Account balance")
		}
	}
	for ccy, amt := range status.BorrowedBalances {
		if amt > 0 {
			e.logger.WithFields(logrus.Fields{"currency": ccy, "borrowed": amt}).Info("Borrowed balance")
		}
	}
}

func (e *Engine) displayFeedStatus() {
	statuses := e.FeedStatuses()

	valid := 0
	for _, s := range statuses {
		if s.Valid {
			valid++
		} else {
			e.logger.WithFields(logrus.Fields{
				"symbol":      s.Symbol,
				"spot":        s.SpotPrice,
				"futures":     s.FuturesPrice,
				"spot_age":    s.SpotAge.Seconds(),
				"futures_age": s.FuturesAge.Seconds(),
			}).Warn("Stale price feed")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"valid": valid,
		"total": len(statuses),
	}).Info("Price feed status")
}
