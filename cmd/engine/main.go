package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumabank/credit-engine/internal/bridge"
	"github.com/lumabank/credit-engine/internal/card"
	"github.com/lumabank/credit-engine/internal/config"
	"github.com/lumabank/credit-engine/internal/logging"
	"github.com/lumabank/credit-engine/internal/pricing"
	"github.com/lumabank/credit-engine/internal/risk"
	"github.com/lumabank/credit-engine/internal/store"
	"github.com/lumabank/credit-engine/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("credit-engine", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.NewPostgres(db)

	vault, err := card.NewVault(cfg.CardVaultKey)
	if err != nil {
		slog.Error("failed to open card vault", "error", err)
		os.Exit(1)
	}
	issuer := card.NewIssuer(cfg.CardBIN, cfg.CardValidityMonths, cfg.IssuanceRetries, vault, st)

	persistTimeout := time.Duration(cfg.PersistTimeoutS) * time.Second
	wf := workflow.New(st, risk.NewAssessor(), pricing.NewPricer(), issuer, persistTimeout)

	registry := bridge.NewRegistry()
	registry.Register(bridge.EventKindDecision, func(ctx context.Context, ev bridge.Event) {
		logging.FromContext(ctx).Info("decision emitted",
			"correlation_id", ev.CorrelationID,
			"decision", ev.Decision.Decision,
		)
	})

	// In-process transport: requests enter through transport.Send from an
	// embedding caller. A broker deployment swaps in an adapter implementing
	// bridge.Transport here; nothing downstream changes.
	transport := bridge.NewChanTransport(cfg.WorkerCount * 4)
	br := bridge.New(
		transport, st, wf, registry,
		cfg.MaxDeliveryAttempts, cfg.WorkerCount,
		time.Duration(cfg.CorrelationTTLHours)*time.Hour,
	)

	runCtx := logging.WithLogger(ctx, logger)
	go br.Run(runCtx)
	go cleanupLoop(runCtx, br)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}

func cleanupLoop(ctx context.Context, br *bridge.Bridge) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := br.CleanExpired(ctx)
			if err != nil {
				slog.Error("correlation cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired correlation records removed", "count", n)
			}
		}
	}
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	pool := store.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var lastErr error
	for i := range 30 {
		db, err := store.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		if err == nil {
			return db, nil
		}
		lastErr = err
		slog.Info("waiting for database", "attempt", i+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", lastErr)
}
