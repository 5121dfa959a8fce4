package models

import (
	"time"
)

type MarketLeg string

const (
	LegSpot    MarketLeg = "spot"
	LegFutures MarketLeg = "futures"
)

// PriceSnapshot is the latest known state of one leg of a symbol.
type PriceSnapshot struct {
	InstID    string
	Price     float64
	Volume24h float64
	UpdatedAt time.Time
}

type OrderBookLevel struct {
	Price float64
	Size  float64
}

type OrderBook struct {
	InstID    string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
}

type Ticker struct {
	InstID    string
	LastPrice float64
	Volume24h float64
	Timestamp time.Time
}
