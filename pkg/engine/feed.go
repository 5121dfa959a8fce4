package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/pkg/models"
	"github.com/okxcarry/carrytrader/pkg/okx"
)

// Batch refresh discipline: two symbols per batch, one request in flight,
// a fixed pause between batches. This is deliberate rate limiting against
// the public endpoints, not a throughput knob.
const (
	refreshBatchSize  = 2
	refreshBatchPause = 2 * time.Second
)

// Streamer runs one long-lived ticker subscription, blocking until its
// context is cancelled. Satisfied by okx.TickerStream.
type Streamer interface {
	Run(ctx context.Context, instID string, apply okx.PriceUpdate)
}

// feedSupervisor owns price freshness: periodic REST refresh of the whole
// active set, plus a streaming pair (spot and futures legs) per symbol with
// an open position.
type feedSupervisor struct {
	market   MarketData
	book     *PriceBook
	streamer Streamer
	logger   *logrus.Logger

	mu      sync.Mutex
	streams map[string]*streamPair
}

// streamPair ties both legs' streaming tasks to one position so lifecycle is
// structural: promote starts both, demote cancels both and waits.
type streamPair struct {
	cancel context.CancelFunc
	done   sync.WaitGroup
}

func newFeedSupervisor(market MarketData, book *PriceBook, streamer Streamer, logger *logrus.Logger) *feedSupervisor {
	return &feedSupervisor{
		market:   market,
		book:     book,
		streamer: streamer,
		logger:   logger,
		streams:  make(map[string]*streamPair),
	}
}

// RefreshActiveSet re-fetches both legs of every active-set symbol over
// REST. A failed leg is logged and skipped; it never aborts the batch. The
// internal pauses mean one call can span several trading-loop ticks.
func (f *feedSupervisor) RefreshActiveSet(ctx context.Context, u *Universe) {
	f.logger.WithField("symbols", len(u.ActiveSet)).Debug("Refreshing active set over REST")

	for i := 0; i < len(u.ActiveSet); i += refreshBatchSize {
		if ctx.Err() != nil {
			return
		}

		end := i + refreshBatchSize
		if end > len(u.ActiveSet) {
			end = len(u.ActiveSet)
		}
		for _, symbol := range u.ActiveSet[i:end] {
			info, ok := u.Symbols[symbol]
			if !ok {
				continue
			}
			f.refreshSymbol(ctx, info)
		}

		if end < len(u.ActiveSet) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(refreshBatchPause):
			}
		}
	}

	f.logger.Debug("Active set refresh complete")
}

// refreshSymbol updates both legs sequentially, one request in flight.
func (f *feedSupervisor) refreshSymbol(ctx context.Context, info models.SymbolInfo) {
	if ticker, err := f.market.Ticker(ctx, info.SpotInstID); err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":  info.Symbol,
			"inst_id": info.SpotInstID,
		}).Warn("Spot ticker refresh failed")
	} else if ticker.LastPrice > 0 {
		f.book.SetPrice(info.Symbol, models.LegSpot, ticker.LastPrice)
	}

	if ticker, err := f.market.Ticker(ctx, info.FuturesInstID); err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"symbol":  info.Symbol,
			"inst_id": info.FuturesInstID,
		}).Warn("Futures ticker refresh failed")
	} else if ticker.LastPrice > 0 {
		f.book.SetPrice(info.Symbol, models.LegFutures, ticker.LastPrice)
	}
}

// Promote starts the streaming pair for a symbol that just opened a
// position. Idempotent: an existing pair is left alone.
func (f *feedSupervisor) Promote(ctx context.Context, info models.SymbolInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.streams[info.Symbol]; exists {
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	pair := &streamPair{cancel: cancel}
	pair.done.Add(2)

	symbol := info.Symbol
	go func() {
		defer pair.done.Done()
		f.streamer.Run(streamCtx, info.SpotInstID, func(price float64, _ time.Time) {
			f.book.SetPrice(symbol, models.LegSpot, price)
		})
	}()
	go func() {
		defer pair.done.Done()
		f.streamer.Run(streamCtx, info.FuturesInstID, func(price float64, _ time.Time) {
			f.book.SetPrice(symbol, models.LegFutures, price)
		})
	}()

	f.streams[symbol] = pair
	f.logger.WithField("symbol", symbol).Info("Started streaming pair for position")
}

// Demote cancels a symbol's streaming pair and waits for both tasks to
// finish, so a later re-entry cannot race a lingering writer.
func (f *feedSupervisor) Demote(symbol string) {
	f.mu.Lock()
	pair, ok := f.streams[symbol]
	if ok {
		delete(f.streams, symbol)
	}
	f.mu.Unlock()

	if !ok {
		return
	}

	pair.cancel()
	pair.done.Wait()
	f.logger.WithField("symbol", symbol).Info("Stopped streaming pair for position")
}

// StopAll demotes every streaming symbol; used on shutdown.
func (f *feedSupervisor) StopAll() {
	f.mu.Lock()
	pairs := make(map[string]*streamPair, len(f.streams))
	for symbol, pair := range f.streams {
		pairs[symbol] = pair
	}
	f.streams = make(map[string]*streamPair)
	f.mu.Unlock()

	for symbol, pair := range pairs {
		pair.cancel()
		pair.done.Wait()
		f.logger.WithField("symbol", symbol).Debug("Streaming pair stopped")
	}
}
