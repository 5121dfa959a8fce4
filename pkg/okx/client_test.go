package okx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// writeBody serves a canned envelope; the content type matters because the
// client only decodes JSON responses.
func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(testLogger(),
		WithBaseURL(srv.URL),
		WithRateLimit(time.Millisecond, 10))
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/time", r.URL.Path)
		writeBody(w, `{"code":"0","msg":"","data":[{"ts":"1700000000000"}]}`)
	})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestTickers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "SPOT", r.URL.Query().Get("instType"))
		writeBody(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT","last":"50000.5","vol24h":"1000","ts":"1700000000000"},
			{"instId":"ETH-USDT","last":"2000","vol24h":"5000","ts":"1700000000000"}
		]}`)
	})

	tickers, err := c.Tickers(context.Background(), InstTypeSpot)
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	assert.Equal(t, "BTC-USDT", tickers[0].InstID)
	assert.Equal(t, 50000.5, tickers[0].LastPrice)
	assert.Equal(t, 5000.0, tickers[1].Volume24h)
}

func TestTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("instId"))
		writeBody(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT","last":"50000.5","vol24h":"1000","ts":"1700000000000"}]}`)
	})

	ticker, err := c.Ticker(context.Background(), "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.5, ticker.LastPrice)
}

func TestTickerEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, `{"code":"0","msg":"","data":[]}`)
	})

	_, err := c.Ticker(context.Background(), "NOPE-USDT")
	assert.Error(t, err)
}

func TestTickerAPIError(t *testing.T) {
	// Application errors arrive with HTTP 200 and a nonzero code.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`)
	})

	_, err := c.Ticker(context.Background(), "NOPE-USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "51001")
}

func TestOrderBook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/books", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("sz"))
		writeBody(w, `{"code":"0","msg":"","data":[{
			"bids":[["50000","1.5","0","3"],["49999","2","0","1"]],
			"asks":[["50001","0.7","0","2"]],
			"ts":"1700000000000"
		}]}`)
	})

	book, err := c.OrderBook(context.Background(), "BTC-USDT", 10)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT", book.InstID)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 1.5, book.Bids[0].Size)
}

func TestFundingRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/funding-rate", r.URL.Path)
		writeBody(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","fundingRate":"0.0001","nextFundingTime":"1700000000000"}]}`)
	})

	rate, err := c.FundingRate(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	assert.Equal(t, 0.0001, rate.Rate)
	assert.Equal(t, time.UnixMilli(1700000000000), rate.NextFundingTime)
}

func TestHTTPErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Tickers(context.Background(), InstTypeSpot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGetHonorsContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, `{"code":"0","msg":"","data":[]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Tickers(ctx, InstTypeSpot)
	assert.Error(t, err)
}
