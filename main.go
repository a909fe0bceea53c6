package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradectl/internal/api"
	"tradectl/internal/broker"
	"tradectl/internal/cooldown"
	"tradectl/internal/engine"
	"tradectl/internal/events"
	"tradectl/internal/ledger"
	"tradectl/internal/market"
	"tradectl/internal/metrics"
	"tradectl/internal/monitor"
	"tradectl/internal/risk"
	"tradectl/internal/signals"
	"tradectl/pkg/config"
	"tradectl/pkg/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	params, err := config.LoadTradingParams(cfg.TradingConfigPath)
	if err != nil {
		log.Fatalf("trading params load failed: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}
	log.Printf("🚀 tradectl %s starting on port %s", buildVersion, cfg.Port)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("database migrations failed: %v", err)
	}
	queries := database.Queries()

	// Ledger seeded from the persisted transaction log.
	book := ledger.New(cfg.InitialCapital)
	storedTxs, err := queries.ListTransactions(rootCtx)
	if err != nil {
		log.Fatalf("load transaction log: %v", err)
	}
	for _, tx := range storedTxs {
		if _, err := book.Apply(tx); err != nil {
			log.Printf("skipping stored transaction %s: %v", tx.ID, err)
		}
	}
	log.Printf("✓ ledger restored: %d transactions, cash=%.2f", len(storedTxs), book.Cash())

	// Cooldown state survives restarts via a JSON file.
	var store cooldown.Store
	if !cfg.DisableCooldownPersistence {
		store = cooldown.NewFileStore(cfg.CooldownStatePath)
	}
	cooldowns := cooldown.NewManager(params.Cooldowns, store)
	if err := cooldowns.Restore(); err != nil {
		log.Printf("cooldown restore failed, continuing empty: %v", err)
	}

	// Metrics seeded from the persisted snapshot history.
	portfolio := metrics.NewEngine(cfg.InitialCapital, metrics.DefaultHistoryLimit)
	storedSnaps, err := queries.ListRecentSnapshots(rootCtx, metrics.DefaultHistoryLimit)
	if err != nil {
		log.Printf("load snapshot history failed: %v", err)
	}
	for _, s := range storedSnaps {
		portfolio.Observe(s)
	}

	sysMetrics := monitor.NewSystemMetrics()

	// Market data (mock feed doubles as the live price source in dry runs).
	var priceSource market.PriceSource
	if cfg.UseMockFeed {
		mock := &market.MockFeed{
			Bus:        bus,
			Symbols:    cfg.Symbols,
			StartPrice: 100,
			Step:       0.8,
			Interval:   time.Second,
		}
		mock.Start(rootCtx)
		priceSource = mock
		log.Println("✓ mock market feed started")
	}
	resolver := market.NewResolver(priceSource, 3*time.Second)

	// Signal source
	feed := signals.Feed{
		Bus:      bus,
		Source:   signals.NewRandomSource(cfg.Symbols, time.Now().UnixNano()),
		Interval: cfg.SignalInterval,
	}
	feed.Start(rootCtx)

	eng := engine.New(engine.Config{
		CommissionRate:   cfg.CommissionRate,
		SnapshotInterval: time.Minute,
		Symbols:          cfg.Symbols,
	}, engine.Deps{
		Ledger:    book,
		Cooldowns: cooldowns,
		Gate:      risk.NewGate(params.Risk),
		Metrics:   portfolio,
		Prices:    resolver,
		Bus:       bus,
		System:    sysMetrics,
		Recorder:  queries,
	})

	// Broker sync: the broker's history replaces local bookkeeping.
	if cfg.EnableBrokerSync {
		if cfg.BrokerBaseURL == "" {
			log.Println("⚠️ broker sync enabled but BROKER_BASE_URL is empty; sync disabled")
		} else {
			client := broker.NewRESTClient(cfg.BrokerBaseURL, cfg.BrokerToken, 10*time.Second)
			sync := broker.NewSyncService(client, book, bus, sysMetrics, cfg.SyncInterval)
			sync.Start(rootCtx)
		}
	}

	// Persist broker-synced history so restarts replay the same log.
	syncReports, unsubSync := bus.Subscribe(events.TopicSyncReport, 8)
	defer unsubSync()
	go func() {
		for range syncReports {
			if err := queries.ReplaceAllTransactions(rootCtx, book.Transactions()); err != nil {
				log.Printf("persist synced transactions failed: %v", err)
			}
		}
	}()

	server := api.NewServer(bus, eng, queries, sysMetrics, api.SystemMeta{
		DryRun:      cfg.DryRun,
		Symbols:     cfg.Symbols,
		UseMockFeed: cfg.UseMockFeed,
		Version:     buildVersion,
	}, cfg.JWTSecret)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		err := eng.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Printf("✓ API listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ shutdown with error: %v", err)
	}
	log.Println("shutdown complete")
}
