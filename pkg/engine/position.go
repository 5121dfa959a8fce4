package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// legQuantities splits the per-trade capital evenly across both legs at
// their current prices, rounded to the instrument's quantity precision.
// Leverage scales capital efficiency upstream, not the quantity formula.
func legQuantities(capital, spotPrice, futuresPrice float64, precision int32) (spotQty, futuresQty float64) {
	half := capital * 0.5
	spotQty = roundQuantity(half/spotPrice, precision)
	futuresQty = roundQuantity(half/futuresPrice, precision)
	return spotQty, futuresQty
}

func roundQuantity(qty float64, precision int32) float64 {
	return decimal.NewFromFloat(qty).Round(precision).InexactFloat64()
}

// positionPnL computes the PnL of a position at the given prices; used for
// both unrealized marks and the realized figure at exit. Fees are not
// modeled here. Backwardation flips the sign of both legs.
func positionPnL(pos *models.Position, spotPrice, futuresPrice float64) float64 {
	spotPnL := ((spotPrice - pos.EntrySpotPrice) / pos.EntrySpotPrice) * pos.SpotQuantity * pos.EntrySpotPrice
	futuresPnL := ((pos.EntryFuturesPrice - futuresPrice) / pos.EntryFuturesPrice) * pos.FuturesQuantity * pos.EntryFuturesPrice

	if pos.Type == models.PositionBackwardation {
		spotPnL = -spotPnL
		futuresPnL = -futuresPnL
	}
	return spotPnL + futuresPnL
}

// enterPosition opens both legs, records the borrow and the position, and
// promotes the symbol to streaming. The capacity check happened at decision
// time; decision and insertion share the trading-loop goroutine, so the
// pair stays atomic.
func (e *Engine) enterPosition(ctx context.Context, symbol string, posType models.PositionType) bool {
	info, ok := e.universe.Symbols[symbol]
	if !ok {
		return false
	}
	spot, futures, ok := e.book.Pair(symbol)
	if !ok {
		return false
	}

	spotQty, futuresQty := legQuantities(e.cfg.CapitalPerTrade, spot.Price, futures.Price, info.QuantityPrecision)

	var spotSide, futuresSide models.OrderSide
	if posType == models.PositionContango {
		spotSide, futuresSide = models.OrderSideBuy, models.OrderSideSell
	} else {
		spotSide, futuresSide = models.OrderSideSell, models.OrderSideBuy
	}

	orderCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderDeadline())
	defer cancel()

	spotOrderID, err := e.gateway.PlaceOrder(orderCtx, models.OrderRequest{
		InstID:   info.SpotInstID,
		Side:     spotSide,
		Type:     models.OrderTypeMarket,
		Quantity: spotQty,
	})
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to place spot order")
		return false
	}

	futuresOrderID, err := e.gateway.PlaceOrder(orderCtx, models.OrderRequest{
		InstID:   info.FuturesInstID,
		Side:     futuresSide,
		Type:     models.OrderTypeMarket,
		Quantity: futuresQty,
	})
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to place futures order")
		return false
	}

	// Contango borrows quote for the spot notional; backwardation borrows
	// the base asset to cover the short.
	var borrowedCurrency string
	var borrowedAmount float64
	if posType == models.PositionContango {
		borrowedCurrency = info.QuoteCurrency
		borrowedAmount = spotQty * spot.Price
	} else {
		borrowedCurrency = info.BaseCurrency
		borrowedAmount = spotQty
	}
	if err := e.gateway.BorrowMargin(orderCtx, borrowedCurrency, borrowedAmount); err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to borrow margin")
		return false
	}
	e.account.Borrow(borrowedCurrency, borrowedAmount)

	pos := &models.Position{
		Symbol:            symbol,
		Type:              posType,
		EntryTime:         time.Now(),
		EntrySpotPrice:    spot.Price,
		EntryFuturesPrice: futures.Price,
		SpotOrderID:       spotOrderID,
		FuturesOrderID:    futuresOrderID,
		SpotQuantity:      spotQty,
		FuturesQuantity:   futuresQty,
		BorrowedAmount:    borrowedAmount,
		BorrowedCurrency:  borrowedCurrency,
	}

	e.posMu.Lock()
	e.positions[symbol] = pos
	e.posMu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"symbol":       symbol,
		"type":         posType,
		"spot_qty":     spotQty,
		"futures_qty":  futuresQty,
		"spot_price":   spot.Price,
		"futures_price": futures.Price,
	}).Info("Entered position")

	e.feed.Promote(e.runCtx, info)
	e.displayPortfolioStatus()
	return true
}

// exitPosition closes both legs, repays the borrow, realizes PnL, removes
// the position and demotes the symbol from streaming.
func (e *Engine) exitPosition(ctx context.Context, symbol string) error {
	e.posMu.RLock()
	pos, ok := e.positions[symbol]
	e.posMu.RUnlock()
	if !ok {
		return fmt.Errorf("no open position for %s", symbol)
	}

	info, ok := e.universe.Symbols[symbol]
	if !ok {
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	spot, futures, ok := e.book.Pair(symbol)
	if !ok {
		return fmt.Errorf("no price data for %s", symbol)
	}

	var spotSide, futuresSide models.OrderSide
	if pos.Type == models.PositionContango {
		spotSide, futuresSide = models.OrderSideSell, models.OrderSideBuy
	} else {
		spotSide, futuresSide = models.OrderSideBuy, models.OrderSideSell
	}

	orderCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderDeadline())
	defer cancel()

	if _, err := e.gateway.PlaceOrder(orderCtx, models.OrderRequest{
		InstID:   info.SpotInstID,
		Side:     spotSide,
		Type:     models.OrderTypeMarket,
		Quantity: pos.SpotQuantity,
	}); err != nil {
		return fmt.Errorf("close spot leg for %s: %w", symbol, err)
	}
	if _, err := e.gateway.PlaceOrder(orderCtx, models.OrderRequest{
		InstID:   info.FuturesInstID,
		Side:     futuresSide,
		Type:     models.OrderTypeMarket,
		Quantity: pos.FuturesQuantity,
	}); err != nil {
		return fmt.Errorf("close futures leg for %s: %w", symbol, err)
	}

	if err := e.gateway.RepayMargin(orderCtx, pos.BorrowedCurrency, pos.BorrowedAmount); err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to repay margin")
	}
	if overshoot := e.account.Repay(pos.BorrowedCurrency, pos.BorrowedAmount); overshoot > 0 {
		e.logger.WithFields(logrus.Fields{
			"symbol":    symbol,
			"currency":  pos.BorrowedCurrency,
			"overshoot": overshoot,
		}).Warn("Margin repayment exceeded outstanding borrow, floored at zero")
	}

	pnl := positionPnL(pos, spot.Price, futures.Price)

	e.posMu.Lock()
	e.realizedPnL += pnl
	delete(e.positions, symbol)
	e.posMu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"type":   pos.Type,
		"pnl":    pnl,
	}).Info("Exited position")

	e.feed.Demote(symbol)
	e.displayPortfolioStatus()
	return nil
}
