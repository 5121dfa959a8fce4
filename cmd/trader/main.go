package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/okxcarry/carrytrader/api"
	"github.com/okxcarry/carrytrader/internal/config"
	"github.com/okxcarry/carrytrader/internal/logging"
	"github.com/okxcarry/carrytrader/pkg/engine"
	"github.com/okxcarry/carrytrader/pkg/gateway"
	"github.com/okxcarry/carrytrader/pkg/okx"
)

var cfgFile string

func main() {
	// Credentials may live in a local .env; missing file is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "carry-trader",
		Short: "OKX cash-and-carry arbitrage engine",
		Long:  `Live trading engine that captures the spot/perpetual basis across the most liquid OKX symbol pairs`,
		Run:   runTrader,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "symbols",
		Short: "Discover and rank tradable symbol pairs, then exit",
		Run:   runSymbols,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runTrader(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logging")
	}

	if cfg.ThresholdsOverlap() {
		logger.WithFields(logrus.Fields{
			"entrance": cfg.Trading.EntranceThreshold,
			"exit":     cfg.Trading.ExitThreshold,
		}).Warn("Entrance threshold does not exceed exit threshold; entry and exit bands overlap")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	market := okx.NewClient(logger, okx.WithBaseURL(cfg.OKX.BaseURL))
	streamer := okx.NewTickerStream(logger).
		WithURL(cfg.WebSocket.URL).
		WithReconnectDelay(time.Duration(cfg.WebSocket.ReconnectDelay) * time.Second)

	// The simulated gateway looks prices up through the engine, which does
	// not exist yet; bind late through the closure.
	var eng *engine.Engine
	quote := func(instID string) float64 {
		if eng == nil {
			return 0
		}
		return eng.QuoteByInstID(instID)
	}

	var gw gateway.ExecutionGateway
	if cfg.OKX.Simulated {
		gw = gateway.NewSimulator(logger, quote)
	} else {
		logger.Fatal("Live order execution is not implemented; set okx.simulated: true")
	}

	eng = engine.New(cfg.Trading, market, gw, streamer, logger)
	if cfg.OKX.Simulated {
		eng.Account().SeedSimulated(cfg.Trading.QuoteCurrency)
	}

	if err := eng.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start trading engine")
	}

	if cfg.Server.Enabled {
		apiServer := api.NewServer(eng, logger, fmt.Sprintf("%d", cfg.Server.Port))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.WithError(err).Error("API server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Carry trader is running. Press Ctrl+C to stop.")

	<-sigChan
	logger.Info("Received shutdown signal")

	eng.Stop()
	cancel()

	logger.Info("Carry trader stopped")
}

func runSymbols(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	market := okx.NewClient(logger, okx.WithBaseURL(cfg.OKX.BaseURL))

	spotTickers, err := market.Tickers(ctx, okx.InstTypeSpot)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to fetch spot tickers")
	}
	futuresTickers, err := market.Tickers(ctx, okx.InstTypeSwap)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to fetch futures tickers")
	}

	u := engine.BuildUniverse(spotTickers, futuresTickers, cfg.Trading.QuoteCurrency, cfg.Trading.ActiveSetSize)
	if u.Fallback {
		fmt.Println("warning: discovery produced no pairs, showing fallback symbols")
	}

	fmt.Printf("%-4s %-14s %16s %16s %18s\n", "#", "SYMBOL", "SPOT", "FUTURES", "LIQUIDITY(USD)")
	for i, r := range u.Ranked {
		marker := " "
		if i < len(u.ActiveSet) {
			marker = "*"
		}
		fmt.Printf("%-4d %-14s %16.4f %16.4f %18.0f %s\n",
			i+1, r.Symbol, r.SpotPrice, r.FuturesPrice, r.LiquidityScore, marker)
	}
	fmt.Printf("\n%d pairs, * marks the active set (top %d)\n", len(u.Ranked), len(u.ActiveSet))
}
