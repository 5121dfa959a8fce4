package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okxcarry/carrytrader/pkg/models"
)

// QuoteFunc resolves the current market price of an instrument so simulated
// fills can be logged at a realistic level. Returning 0 is allowed.
type QuoteFunc func(instID string) float64

// Simulator is the paper-trading gateway. Every order fills immediately and
// every margin operation succeeds; there is no exchange round trip.
type Simulator struct {
	logger *logrus.Logger
	quote  QuoteFunc
	seq    atomic.Int64
}

func NewSimulator(logger *logrus.Logger, quote QuoteFunc) *Simulator {
	return &Simulator{logger: logger, quote: quote}
}

func (s *Simulator) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	orderID := fmt.Sprintf("sim-%d-%d", time.Now().UnixMilli(), s.seq.Add(1))

	price := req.Price
	if price == 0 && s.quote != nil {
		price = s.quote(req.InstID)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"inst_id":  req.InstID,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": req.Quantity,
		"price":    price,
	}).Info("Simulated order filled")

	return orderID, nil
}

func (s *Simulator) BorrowMargin(ctx context.Context, currency string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"currency": currency,
		"amount":   amount,
	}).Info("Simulated margin borrow")
	return nil
}

func (s *Simulator) RepayMargin(ctx context.Context, currency string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"currency": currency,
		"amount":   amount,
	}).Info("Simulated margin repay")
	return nil
}
