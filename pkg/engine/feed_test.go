package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okxcarry/carrytrader/pkg/models"
)

func TestRefreshActiveSetUpdatesBothLegs(t *testing.T) {
	market := newFakeMarket()
	market.pairTickers("BTC", 50000, 50100, 1000)

	book := NewPriceBook()
	book.Seed("BTC-USDT",
		models.PriceSnapshot{InstID: "BTC-USDT"},
		models.PriceSnapshot{InstID: "BTC-USDT-SWAP"},
		0)

	u := BuildUniverse(market.spot, market.swap, "USDT", 50)
	f := newFeedSupervisor(market, book, &fakeStreamer{}, testLogger())

	require.False(t, book.Fresh("BTC-USDT"))
	f.RefreshActiveSet(context.Background(), u)

	spot, futures, ok := book.Pair("BTC-USDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, spot.Price)
	assert.Equal(t, 50100.0, futures.Price)
	assert.True(t, book.Fresh("BTC-USDT"))
}

func TestRefreshActiveSetSkipsFailedLeg(t *testing.T) {
	market := newFakeMarket()
	market.pairTickers("BTC", 50000, 50100, 1000)
	// Drop the futures leg from the lookup so its refresh fails.
	market.mu.Lock()
	delete(market.tickers, "BTC-USDT-SWAP")
	market.mu.Unlock()

	book := NewPriceBook()
	book.Seed("BTC-USDT",
		models.PriceSnapshot{InstID: "BTC-USDT"},
		models.PriceSnapshot{InstID: "BTC-USDT-SWAP"},
		0)

	u := BuildUniverse(market.spot, market.swap, "USDT", 50)
	f := newFeedSupervisor(market, book, &fakeStreamer{}, testLogger())
	f.RefreshActiveSet(context.Background(), u)

	// The good leg landed; the failed one stayed untouched.
	spot, futures, ok := book.Pair("BTC-USDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, spot.Price)
	assert.Zero(t, futures.Price)
	assert.False(t, book.Fresh("BTC-USDT"))
}

func TestRefreshActiveSetHonorsCancellation(t *testing.T) {
	market := newFakeMarket()
	market.pairTickers("BTC", 50000, 50100, 1000)

	book := NewPriceBook()
	u := BuildUniverse(market.spot, market.swap, "USDT", 50)
	f := newFeedSupervisor(market, book, &fakeStreamer{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.RefreshActiveSet(ctx, u)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh did not return after cancellation")
	}
}

func TestPromoteDemoteLifecycle(t *testing.T) {
	market := newFakeMarket()
	book := NewPriceBook()
	seedPair(book, "BTC-USDT", 50000, 50100, time.Now())

	streamer := &fakeStreamer{}
	f := newFeedSupervisor(market, book, streamer, testLogger())

	info := models.SymbolInfo{
		Symbol:        "BTC-USDT",
		SpotInstID:    "BTC-USDT",
		FuturesInstID: "BTC-USDT-SWAP",
	}

	f.Promote(context.Background(), info)
	assert.Eventually(t, func() bool {
		return len(streamer.startedInsts()) == 2
	}, time.Second, 10*time.Millisecond)

	// Promote is idempotent.
	f.Promote(context.Background(), info)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, streamer.startedInsts(), 2)

	// Demote blocks until both leg tasks returned.
	f.Demote("BTC-USDT")
	f.mu.Lock()
	assert.Empty(t, f.streams)
	f.mu.Unlock()

	// Demoting an unknown symbol is a no-op.
	f.Demote("ETH-USDT")
}

func TestStopAllStopsEveryPair(t *testing.T) {
	market := newFakeMarket()
	book := NewPriceBook()
	streamer := &fakeStreamer{}
	f := newFeedSupervisor(market, book, streamer, testLogger())

	for _, base := range []string{"BTC", "ETH"} {
		f.Promote(context.Background(), models.SymbolInfo{
			Symbol:        base + "-USDT",
			SpotInstID:    base + "-USDT",
			FuturesInstID: base + "-USDT-SWAP",
		})
	}
	assert.Eventually(t, func() bool {
		return len(streamer.startedInsts()) == 4
	}, time.Second, 10*time.Millisecond)

	f.StopAll()
	f.mu.Lock()
	assert.Empty(t, f.streams)
	f.mu.Unlock()
}
