package okx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// PriceUpdate receives each last-trade price from a ticker stream.
type PriceUpdate func(price float64, ts time.Time)

// TickerStream maintains a long-lived subscription to the public tickers
// channel for a single instrument. One stream maps to one goroutine calling
// Run; the stream reconnects forever with a fixed delay until the context
// is cancelled.
type TickerStream struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *logrus.Logger
}

func NewTickerStream(logger *logrus.Logger) *TickerStream {
	return &TickerStream{
		url:            defaultWSURL,
		reconnectDelay: 5 * time.Second,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// WithURL points the stream at a non-default endpoint, mainly for tests.
func (s *TickerStream) WithURL(url string) *TickerStream {
	s.url = url
	return s
}

// WithReconnectDelay overrides the fixed retry delay.
func (s *TickerStream) WithReconnectDelay(d time.Duration) *TickerStream {
	s.reconnectDelay = d
	return s
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type streamMessage struct {
	Event string `json:"event"`
	Msg   string `json:"msg"`
	Data  []struct {
		Last string `json:"last"`
		TS   string `json:"ts"`
	} `json:"data"`
}

// Run blocks until ctx is cancelled. A dropped connection or read error is
// never fatal; the stream waits the reconnect delay and dials again.
func (s *TickerStream) Run(ctx context.Context, instID string, apply PriceUpdate) {
	log := s.logger.WithField("inst_id", instID)

	for ctx.Err() == nil {
		if err := s.connectAndRead(ctx, instID, apply); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("Ticker stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *TickerStream) connectAndRead(ctx context.Context, instID string, apply PriceUpdate) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the blocking read when the context is cancelled.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	sub := subscribeRequest{
		Op:   "subscribe",
		Args: []subscribeArg{{Channel: "tickers", InstID: instID}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	s.logger.WithField("inst_id", instID).Info("Subscribed to ticker stream")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg streamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.WithField("inst_id", instID).Warn("Malformed ticker stream message")
			continue
		}

		// Subscription acks and errors carry an event field and no data.
		if msg.Event != "" {
			s.logger.WithFields(logrus.Fields{
				"inst_id": instID,
				"event":   msg.Event,
				"msg":     msg.Msg,
			}).Debug("Ticker stream event")
			continue
		}

		for _, tick := range msg.Data {
			price := parseFloat(tick.Last)
			if price <= 0 {
				continue
			}
			apply(price, parseMillis(tick.TS))
		}
	}
}
