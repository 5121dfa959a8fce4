package okx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/okxcarry/carrytrader/pkg/models"
)

const (
	defaultBaseURL = "https://www.okx.com"
	defaultWSURL   = "wss://ws.okx.com:8443/ws/v5/public"
)

// Client wraps the OKX v5 public market data REST endpoints. All requests
// share one rate limiter so bursts from different callers still respect the
// exchange limits.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

type ClientOption func(*Client)

// WithBaseURL points the client at a non-default host, mainly for tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.http.SetBaseURL(url)
	}
}

// WithRateLimit overrides the request pacing.
func WithRateLimit(interval time.Duration, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

func NewClient(logger *logrus.Logger, opts ...ClientOption) *Client {
	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "carry-trader/1.0")

	c := &Client{
		http: httpClient,
		// 5 requests/sec with a small burst keeps well under the public
		// endpoint limit of 20 req / 2s.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping hits the public time endpoint to verify connectivity.
func (c *Client) Ping(ctx context.Context) error {
	var out apiResponse[serverTimeData]
	if err := c.get(ctx, "/api/v5/public/time", nil, &out); err != nil {
		return err
	}
	return out.err("public/time")
}

// Tickers fetches all tickers of one instrument type in a single call.
func (c *Client) Tickers(ctx context.Context, instType string) ([]models.Ticker, error) {
	var out apiResponse[tickerData]
	params := map[string]string{"instType": instType}
	if err := c.get(ctx, "/api/v5/market/tickers", params, &out); err != nil {
		return nil, err
	}
	if err := out.err("market/tickers"); err != nil {
		return nil, err
	}

	tickers := make([]models.Ticker, 0, len(out.Data))
	for _, t := range out.Data {
		tickers = append(tickers, t.toModel())
	}
	return tickers, nil
}

// Ticker fetches the latest ticker for one instrument.
func (c *Client) Ticker(ctx context.Context, instID string) (models.Ticker, error) {
	var out apiResponse[tickerData]
	params := map[string]string{"instId": instID}
	if err := c.get(ctx, "/api/v5/market/ticker", params, &out); err != nil {
		return models.Ticker{}, err
	}
	if err := out.err("market/ticker"); err != nil {
		return models.Ticker{}, err
	}
	if len(out.Data) == 0 {
		return models.Ticker{}, fmt.Errorf("okx market/ticker: empty data for %s", instID)
	}
	return out.Data[0].toModel(), nil
}

// OrderBook fetches the top of book for one instrument, depth levels per side.
func (c *Client) OrderBook(ctx context.Context, instID string, depth int) (models.OrderBook, error) {
	var out apiResponse[bookData]
	params := map[string]string{
		"instId": instID,
		"sz":     strconv.Itoa(depth),
	}
	if err := c.get(ctx, "/api/v5/market/books", params, &out); err != nil {
		return models.OrderBook{}, err
	}
	if err := out.err("market/books"); err != nil {
		return models.OrderBook{}, err
	}
	if len(out.Data) == 0 {
		return models.OrderBook{}, fmt.Errorf("okx market/books: empty data for %s", instID)
	}
	return out.Data[0].toModel(instID), nil
}

// FundingRate fetches the current funding rate of a perpetual instrument.
func (c *Client) FundingRate(ctx context.Context, instID string) (FundingRate, error) {
	var out apiResponse[fundingRateData]
	params := map[string]string{"instId": instID}
	if err := c.get(ctx, "/api/v5/public/funding-rate", params, &out); err != nil {
		return FundingRate{}, err
	}
	if err := out.err("public/funding-rate"); err != nil {
		return FundingRate{}, err
	}
	if len(out.Data) == 0 {
		return FundingRate{}, fmt.Errorf("okx public/funding-rate: empty data for %s", instID)
	}
	d := out.Data[0]
	return FundingRate{
		InstID:          d.InstID,
		Rate:            parseFloat(d.FundingRate),
		NextFundingTime: parseMillis(d.NextFundingTime),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx).SetResult(out)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("okx %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		c.logger.WithFields(logrus.Fields{
			"endpoint": path,
			"status":   resp.StatusCode(),
		}).Warn("OKX request returned non-2xx")
		return fmt.Errorf("okx %s: http %d", path, resp.StatusCode())
	}
	return nil
}
