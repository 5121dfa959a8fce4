package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/internal/config"
	"github.com/okxcarry/carrytrader/pkg/gateway"
	"github.com/okxcarry/carrytrader/pkg/models"
	"github.com/okxcarry/carrytrader/pkg/okx"
)

// MarketData is the narrow read surface the engine needs from the exchange.
// Implemented by *okx.Client; faked in tests.
type MarketData interface {
	Ping(ctx context.Context) error
	Tickers(ctx context.Context, instType string) ([]models.Ticker, error)
	Ticker(ctx context.Context, instID string) (models.Ticker, error)
	OrderBook(ctx context.Context, instID string, depth int) (models.OrderBook, error)
	FundingRate(ctx context.Context, instID string) (okx.FundingRate, error)
}

type engineState int32

const (
	stateIdle engineState = iota
	stateRunning
	stateShuttingDown
	stateStopped
)

func (s engineState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateShuttingDown:
		return "shutting_down"
	case stateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Engine is the live cash-and-carry trading engine. One trading-loop
// goroutine owns all position registry mutations; the health check and the
// funding monitor run alongside it, and the feed supervisor's streaming
// tasks only ever touch the price book.
type Engine struct {
	cfg     config.TradingConfig
	market  MarketData
	gateway gateway.ExecutionGateway
	book    *PriceBook
	feed    *feedSupervisor
	account *Account
	logger  *logrus.Logger

	universe *Universe

	posMu       sync.RWMutex
	positions   map[string]*models.Position
	realizedPnL float64

	fundingMu    sync.RWMutex
	fundingRates map[string]okx.FundingRate

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32

	refreshing  atomic.Bool
	lastRefresh time.Time
	lastStatus  time.Time

	// Reference intervals; tests shrink these.
	tickInterval    time.Duration
	refreshInterval time.Duration
	statusInterval  time.Duration
	fundingInterval time.Duration
}

func New(cfg config.TradingConfig, market MarketData, gw gateway.ExecutionGateway, streamer Streamer, logger *logrus.Logger) *Engine {
	book := NewPriceBook()
	return &Engine{
		cfg:             cfg,
		market:          market,
		gateway:         gw,
		book:            book,
		feed:            newFeedSupervisor(market, book, streamer, logger),
		account:         NewAccount(),
		logger:          logger,
		positions:       make(map[string]*models.Position),
		fundingRates:    make(map[string]okx.FundingRate),
		tickInterval:    time.Second,
		refreshInterval: 60 * time.Second,
		statusInterval:  30 * time.Second,
		fundingInterval: 60 * time.Second,
	}
}

func (e *Engine) Account() *Account {
	return e.account
}

// Start discovers the symbol universe, seeds the price book and launches
// the trading, health-check and funding-monitor loops. It returns once the
// loops are running.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		return fmt.Errorf("engine already started")
	}

	e.runCtx, e.cancel = context.WithCancel(ctx)

	e.logger.Info("Initializing live trader")

	if err := e.market.Ping(e.runCtx); err != nil {
		e.logger.WithError(err).Warn("API connectivity probe failed, fallback symbols will cover discovery")
	}

	if err := e.discoverUniverse(e.runCtx); err != nil {
		e.state.Store(int32(stateStopped))
		e.cancel()
		return err
	}

	e.wg.Add(3)
	go e.tradingLoop()
	go e.healthLoop()
	go e.fundingLoop()

	e.logger.Info("Live trader running")
	return nil
}

func (e *Engine) discoverUniverse(ctx context.Context) error {
	spotTickers, err := e.market.Tickers(ctx, okx.InstTypeSpot)
	if err != nil {
		e.logger.WithError(err).Error("Spot ticker discovery failed")
	}
	futuresTickers, err := e.market.Tickers(ctx, okx.InstTypeSwap)
	if err != nil {
		e.logger.WithError(err).Error("Futures ticker discovery failed")
	}

	u := BuildUniverse(spotTickers, futuresTickers, e.cfg.QuoteCurrency, e.cfg.ActiveSetSize)
	if u.Fallback {
		e.logger.Warn("Universe discovery produced no pairs, using fallback symbols")
	}
	u.SeedPriceBook(e.book, spotTickers, futuresTickers)
	e.universe = u

	e.logger.WithFields(logrus.Fields{
		"pairs":      len(u.Symbols),
		"active_set": len(u.ActiveSet),
		"fallback":   u.Fallback,
	}).Info("Symbol universe loaded")

	for i, r := range u.Ranked {
		if i >= 20 {
			break
		}
		e.logger.WithFields(logrus.Fields{
			"rank":      i + 1,
			"symbol":    r.Symbol,
			"liquidity": r.LiquidityScore,
			"spot":      r.SpotPrice,
			"futures":   r.FuturesPrice,
		}).Info("Universe ranking")
	}
	return nil
}

// Stop runs the graceful shutdown path: close every open position, stop the
// streaming tasks, then halt the loops.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateShuttingDown)) {
		// Another path (emergency shutdown) already ran; just make sure
		// the loops have exited.
		if e.cancel != nil {
			e.cancel()
		}
		e.wg.Wait()
		return
	}

	e.logger.Info("Shutting down live trader")
	e.closeAllPositions()
	e.feed.StopAll()
	e.cancel()
	e.wg.Wait()
	e.state.Store(int32(stateStopped))
	e.logger.Info("Shutdown complete")
}

// emergencyShutdown force-closes every position best-effort and halts the
// engine. This is the only path where a local failure becomes a global
// state transition.
func (e *Engine) emergencyShutdown() {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateShuttingDown)) {
		return
	}

	e.logger.Warn("Emergency shutdown initiated")
	e.closeAllPositions()
	e.feed.StopAll()
	e.cancel()
	e.state.Store(int32(stateStopped))
	e.logger.Warn("Emergency shutdown completed")
}

func (e *Engine) closeAllPositions() {
	e.posMu.RLock()
	symbols := make([]string, 0, len(e.positions))
	for symbol := range e.positions {
		symbols = append(symbols, symbol)
	}
	e.posMu.RUnlock()

	for _, symbol := range symbols {
		if err := e.exitPosition(context.Background(), symbol); err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to close position during shutdown")
		}
	}
}

func (e *Engine) tradingLoop() {
	defer e.wg.Done()

	e.lastRefresh = time.Now()
	e.lastStatus = time.Now()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick runs one pass of the trading state machine: launch a batch refresh
// when its interval elapsed, evaluate exits before entries, and emit the
// periodic status report.
func (e *Engine) tick() {
	if engineState(e.state.Load()) != stateRunning {
		return
	}
	now := time.Now()

	if now.Sub(e.lastRefresh) >= e.refreshInterval && e.refreshing.CompareAndSwap(false, true) {
		e.lastRefresh = now
		// The refresh paces itself over several seconds, so it runs beside
		// the tick rather than inside it.
		go func() {
			defer e.refreshing.Store(false)
			e.feed.RefreshActiveSet(e.runCtx, e.universe)
		}()
	}

	e.checkExits()
	e.checkEntries()

	if now.Sub(e.lastStatus) >= e.statusInterval {
		e.lastStatus = now
		e.displayPortfolioStatus()
		e.displayFeedStatus()
	}
}

func (e *Engine) checkExits() {
	e.posMu.RLock()
	symbols := make([]string, 0, len(e.positions))
	for symbol := range e.positions {
		symbols = append(symbols, symbol)
	}
	e.posMu.RUnlock()

	for _, symbol := range symbols {
		if !e.book.Fresh(symbol) {
			continue
		}
		spot, futures, ok := e.book.Pair(symbol)
		if !ok {
			continue
		}

		e.posMu.RLock()
		pos, open := e.positions[symbol]
		e.posMu.RUnlock()
		if !open {
			continue
		}

		if e.shouldExit(pos, spot.Price, futures.Price) {
			if err := e.exitPosition(e.runCtx, symbol); err != nil {
				e.logger.WithError(err).WithField("symbol", symbol).Error("Failed to exit position")
			}
		}
	}
}

func (e *Engine) checkEntries() {
	for _, symbol := range e.universe.ActiveSet {
		e.posMu.RLock()
		_, hasPosition := e.positions[symbol]
		count := len(e.positions)
		e.posMu.RUnlock()

		if hasPosition || count >= e.cfg.MaxPositions {
			continue
		}
		if !e.book.Fresh(symbol) {
			continue
		}

		spot, futures, ok := e.book.Pair(symbol)
		if !ok {
			continue
		}
		posType, signal := e.entrySignal(spot.Price, futures.Price)
		if !signal {
			continue
		}

		info := e.universe.Symbols[symbol]
		if !e.checkLiquidity(e.runCtx, info) {
			continue
		}

		e.enterPosition(e.runCtx, symbol, posType)
	}
}

func (e *Engine) healthLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.HealthCheckEvery())
	defer ticker.Stop()

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			if err := e.healthCheck(); err != nil {
				e.logger.WithError(err).Error("Health check failed")
				e.emergencyShutdown()
				return
			}
			e.logger.Debug("Health check passed")
		}
	}
}

// healthCheck re-validates account state and the capacity invariant.
func (e *Engine) healthCheck() error {
	if err := e.account.Validate(); err != nil {
		return err
	}

	e.posMu.RLock()
	defer e.posMu.RUnlock()
	if len(e.positions) > e.cfg.MaxPositions {
		return fmt.Errorf("position count %d exceeds limit %d", len(e.positions), e.cfg.MaxPositions)
	}
	return nil
}

// fundingLoop keeps funding rates current for open-position symbols. The
// rates feed status reporting; they do not gate entries.
func (e *Engine) fundingLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.fundingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			e.refreshFundingRates()
		}
	}
}

func (e *Engine) refreshFundingRates() {
	e.posMu.RLock()
	infos := make([]models.SymbolInfo, 0, len(e.positions))
	for symbol := range e.positions {
		if info, ok := e.universe.Symbols[symbol]; ok {
			infos = append(infos, info)
		}
	}
	e.posMu.RUnlock()

	for _, info := range infos {
		rate, err := e.market.FundingRate(e.runCtx, info.FuturesInstID)
		if err != nil {
			e.logger.WithError(err).WithField("inst_id", info.FuturesInstID).Warn("Funding rate fetch failed")
			continue
		}
		e.fundingMu.Lock()
		e.fundingRates[info.Symbol] = rate
		e.fundingMu.Unlock()
	}
}

// QuoteByInstID resolves an instrument's latest snapshot price, used by the
// simulated gateway to log realistic fill levels.
func (e *Engine) QuoteByInstID(instID string) float64 {
	return e.book.PriceByInstID(instID)
}

// State reports the lifecycle state for the status API.
func (e *Engine) State() string {
	return engineState(e.state.Load()).String()
}
