package engine

import (
	"github.com/okxcarry/carrytrader/pkg/models"
)

// PercentDiff is the symmetric percentage divergence between the two legs:
//
//	(futures - spot) / ((futures + spot) / 2) * 100
//
// Either leg at zero makes the ratio undefined, so it returns 0.
func PercentDiff(spotPrice, futuresPrice float64) float64 {
	if spotPrice == 0 || futuresPrice == 0 {
		return 0
	}
	return (futuresPrice - spotPrice) / ((futuresPrice + spotPrice) / 2) * 100
}

// entrySignal classifies the current divergence against the entrance
// threshold. It assumes the caller already checked freshness, capacity and
// the absence of an open position.
func (e *Engine) entrySignal(spotPrice, futuresPrice float64) (models.PositionType, bool) {
	diff := PercentDiff(spotPrice, futuresPrice)
	switch {
	case diff > e.cfg.EntranceThreshold:
		return models.PositionContango, true
	case diff < -e.cfg.EntranceThreshold:
		return models.PositionBackwardation, true
	default:
		return models.PositionNone, false
	}
}

// shouldExit reports whether an open position's divergence has converged
// through the exit threshold.
func (e *Engine) shouldExit(pos *models.Position, spotPrice, futuresPrice float64) bool {
	diff := PercentDiff(spotPrice, futuresPrice)
	if pos.Type == models.PositionContango {
		return diff < e.cfg.ExitThreshold
	}
	return diff > -e.cfg.ExitThreshold
}
