package gateway

import (
	"context"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// ExecutionGateway is the engine's only path to order placement and margin
// bookkeeping. The simulated implementation is selected at construction for
// paper trading; a production implementation would submit signed orders.
//
// Calls are fire-and-forget success/failure; partial fills are not modeled.
type ExecutionGateway interface {
	// PlaceOrder submits an order and returns the exchange order id.
	PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error)

	// BorrowMargin borrows amount of currency against the margin account.
	BorrowMargin(ctx context.Context, currency string, amount float64) error

	// RepayMargin repays previously borrowed funds.
	RepayMargin(ctx context.Context, currency string, amount float64) error
}
