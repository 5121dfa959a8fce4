package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/pkg/models"
)

const (
	liquidityBookDepth = 10
	liquidityTopLevels = 5
)

// checkLiquidity fetches top-of-book depth for both legs and requires the
// summed size of the top levels, in USD at the current snapshot price, to
// meet the configured floor on all four sides. Any failure on this path
// blocks entry; the gate fails closed.
func (e *Engine) checkLiquidity(ctx context.Context, info models.SymbolInfo) bool {
	spotBook, err := e.market.OrderBook(ctx, info.SpotInstID, liquidityBookDepth)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", info.Symbol).Warn("Spot order book fetch failed, blocking entry")
		return false
	}
	futuresBook, err := e.market.OrderBook(ctx, info.FuturesInstID, liquidityBookDepth)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", info.Symbol).Warn("Futures order book fetch failed, blocking entry")
		return false
	}

	spot, futures, ok := e.book.Pair(info.Symbol)
	if !ok {
		return false
	}

	spotBidUSD := sumTopLevels(spotBook.Bids) * spot.Price
	spotAskUSD := sumTopLevels(spotBook.Asks) * spot.Price
	futuresBidUSD := sumTopLevels(futuresBook.Bids) * futures.Price
	futuresAskUSD := sumTopLevels(futuresBook.Asks) * futures.Price

	minUSD := e.cfg.MinLiquidityUSD
	sufficient := spotBidUSD >= minUSD && spotAskUSD >= minUSD &&
		futuresBidUSD >= minUSD && futuresAskUSD >= minUSD

	if !sufficient {
		e.logger.WithFields(logrus.Fields{
			"symbol":      info.Symbol,
			"spot_bid":    spotBidUSD,
			"spot_ask":    spotAskUSD,
			"futures_bid": futuresBidUSD,
			"futures_ask": futuresAskUSD,
			"min_usd":     minUSD,
		}).Warn("Insufficient liquidity")
	}
	return sufficient
}

func sumTopLevels(levels []models.OrderBookLevel) float64 {
	var total float64
	for i, lvl := range levels {
		if i >= liquidityTopLevels {
			break
		}
		total += lvl.Size
	}
	return total
}
