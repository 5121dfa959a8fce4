package models

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is what the engine hands to the execution gateway. Price is
// ignored for market orders.
type OrderRequest struct {
	InstID   string
	Side     OrderSide
	Type     OrderType
	Quantity float64
	Price    float64
}
