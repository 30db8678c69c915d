// ledgerd is the write-side process: the HTTP edge, the account
// command service, and (when the view store is reachable) the balance
// read path.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/plaenen/accountledger/pkg/account"
	"github.com/plaenen/accountledger/pkg/config"
	"github.com/plaenen/accountledger/pkg/eventlog"
	"github.com/plaenen/accountledger/pkg/httpapi"
	"github.com/plaenen/accountledger/pkg/observability"
	"github.com/plaenen/accountledger/pkg/runner"
	"github.com/plaenen/accountledger/pkg/viewstore"
)

func main() {
	zl := zerolog.New(os.Stderr).With().Timestamp().Str("service", "ledgerd").Logger()
	logger := runner.NewZerologLogger(zl)
	cfg := config.Load()

	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	metrics, err := observability.NewMetrics(provider.Meter("accountledger"))
	if err != nil {
		zl.Fatal().Err(err).Msg("create metrics")
	}

	logClient, err := eventlog.New(eventlog.Config{
		Addr:         cfg.RedisAddr(),
		ReadInterval: cfg.ReadInterval,
		Logger:       logger,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("connect event log")
	}

	svc := account.NewService(logClient,
		account.WithStream(cfg.StreamName),
		account.WithLogger(logger),
		account.WithMetrics(metrics),
	)
	defer svc.Close()

	ctx := context.Background()

	// The balance endpoint is optional on the write side; commands
	// still work when the view store is down.
	var views httpapi.ViewReader
	store, err := viewstore.New(ctx, viewstore.Config{
		URL:        cfg.MongoURL,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		logger.Error("view store unavailable, balance endpoint disabled", "error", err)
	} else {
		views = store
		defer store.Close(ctx)
	}

	server := httpapi.NewServer(cfg.ListenAddr(), svc, views, logger)

	r := runner.New([]runner.Service{server}, runner.WithLogger(logger))
	if err := r.Run(ctx); err != nil {
		zl.Error().Err(err).Msg("runner exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("shut down meter provider")
	}
}
