package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/simexchange/internal/clock"
	"github.com/efreitasn/simexchange/internal/config"
	"github.com/efreitasn/simexchange/internal/engine"
	"github.com/efreitasn/simexchange/internal/feed"
	"github.com/efreitasn/simexchange/internal/handler"
	"github.com/efreitasn/simexchange/internal/metrics"
	"github.com/efreitasn/simexchange/internal/service"
	"github.com/efreitasn/simexchange/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Instantiate stores and restore persisted state.
	st := &stores{
		accounts:    store.NewAccountStore(),
		instruments: store.NewInstrumentStore(),
		trades:      store.NewTradeStore(),
		orders:      store.NewOrderStore(),
	}
	var db *store.SQLiteStore
	if cfg.DBPath != "" {
		db, err = store.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open database", slog.String("path", cfg.DBPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
	}
	lastTrade, err := st.bootstrap(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("failed to load state", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Simulated clock resumes from the latest trade.
	clk := clock.New(clock.StartTime(lastTrade, time.Now(), cfg.Location, cfg.MarketOpenHour), cfg.Location)
	if !lastTrade.IsZero() {
		clk.ObserveTrade(lastTrade)
	}

	// Engine, metrics and the live trade feed.
	recorder := metrics.New()
	tradeFeed := feed.New(logger, recorder.FeedClients)

	var persister engine.Persister
	var saver service.AccountSaver
	if db != nil {
		persister, saver = db, db
	}
	eng := engine.NewEngine(
		engine.Config{
			MarketMakerID: cfg.MarketMakerID,
			InjectBidBps:  cfg.InjectBidBps,
			InjectAskBps:  cfg.InjectAskBps,
		},
		st.accounts, st.instruments, st.trades, st.orders, clk, persister, logger,
	)
	eng.SetMetrics(recorder)
	eng.AddTradeListener(tradeFeed)

	// Services.
	accountSvc := service.NewAccountService(
		service.AccountConfig{
			HumanPrefix:      cfg.HumanPrefix,
			HumanInitialCash: cfg.HumanInitialCash,
			MarketMakerID:    cfg.MarketMakerID,
		},
		st.accounts, st.instruments, saver, clk, logger,
	)
	orderSvc := service.NewOrderService(eng, accountSvc, st.accounts, st.instruments, st.orders)
	marketSvc := service.NewMarketService(
		service.MarketConfig{
			OpenHour:               cfg.MarketOpenHour,
			ExcludeSyntheticVolume: cfg.ExcludeSyntheticVolume,
		},
		eng, st.instruments, st.trades, clk,
	)

	if err := accountSvc.ProvisionMarketMaker(ctx, cfg.MarketMakerCash, cfg.MarketMakerShares); err != nil {
		logger.Error("failed to provision market maker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Router.
	router := handler.NewRouter(accountSvc, orderSvc, marketSvc, tradeFeed, recorder, logger)

	// Start the clock and the market maker with the cancellable context.
	clock.NewTicker(clk, cfg.ClockTick, cfg.ClockStep, cfg.MarketOpenHour, cfg.MarketCloseHour, logger).Start(ctx)
	engine.NewQuoter(engine.QuoterConfig{
		Interval:  cfg.QuoteInterval,
		SpreadBps: cfg.QuoteSpreadBps,
		MinQty:    cfg.QuoteMinQty,
		MaxQty:    cfg.QuoteMaxQty,
	}, eng, nil, logger).Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Int("instruments", len(st.instruments.Tickers())),
			slog.Time("simulated_time", clk.Now()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops clock and quoter).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
