package okx

import (
	"fmt"
	"strconv"
	"time"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// Instrument type filters accepted by the market data endpoints.
const (
	InstTypeSpot = "SPOT"
	InstTypeSwap = "SWAP"
)

// apiResponse is the envelope every v5 endpoint uses. Code "0" means
// success; anything else is an application-level error even on HTTP 200.
type apiResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

func (r *apiResponse[T]) err(endpoint string) error {
	if r.Code == "0" {
		return nil
	}
	return fmt.Errorf("okx %s: code %s: %s", endpoint, r.Code, r.Msg)
}

// tickerData is the raw ticker record; OKX returns every number as a string.
type tickerData struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	Vol24h  string `json:"vol24h"`
	VolCcy  string `json:"volCcy24h"`
	BidPx   string `json:"bidPx"`
	AskPx   string `json:"askPx"`
	TS      string `json:"ts"`
}

func (t tickerData) toModel() models.Ticker {
	return models.Ticker{
		InstID:    t.InstID,
		LastPrice: parseFloat(t.Last),
		Volume24h: parseFloat(t.Vol24h),
		Timestamp: parseMillis(t.TS),
	}
}

type bookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	TS   string     `json:"ts"`
}

func (b bookData) toModel(instID string) models.OrderBook {
	return models.OrderBook{
		InstID:    instID,
		Bids:      parseLevels(b.Bids),
		Asks:      parseLevels(b.Asks),
		Timestamp: parseMillis(b.TS),
	}
}

// parseLevels consumes [price, size, ...] tuples; trailing fields (liquidated
// orders, order count) are ignored.
func parseLevels(raw [][]string) []models.OrderBookLevel {
	levels := make([]models.OrderBookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		levels = append(levels, models.OrderBookLevel{
			Price: parseFloat(lvl[0]),
			Size:  parseFloat(lvl[1]),
		})
	}
	return levels
}

type fundingRateData struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type serverTimeData struct {
	TS string `json:"ts"`
}

// FundingRate is the current funding state of one perpetual instrument.
type FundingRate struct {
	InstID          string
	Rate            float64
	NextFundingTime time.Time
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
