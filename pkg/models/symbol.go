package models

// SymbolInfo describes one spot/perpetual pair discovered during universe
// ranking. It is created once and not mutated afterwards.
type SymbolInfo struct {
	Symbol            string
	SpotInstID        string
	FuturesInstID     string
	BaseCurrency      string
	QuoteCurrency     string
	MinOrderSize      float64
	PricePrecision    int32
	QuantityPrecision int32
	IsActive          bool
}

// SymbolRanking is one row of the liquidity-sorted universe listing.
type SymbolRanking struct {
	Symbol         string
	SpotPrice      float64
	FuturesPrice   float64
	LiquidityScore float64
}
