// projectord is the read-side process: it drains the account stream
// through the shared consumer group and materializes balances into
// the view store.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/plaenen/accountledger/pkg/config"
	"github.com/plaenen/accountledger/pkg/eventlog"
	"github.com/plaenen/accountledger/pkg/observability"
	"github.com/plaenen/accountledger/pkg/projector"
	"github.com/plaenen/accountledger/pkg/runner"
	"github.com/plaenen/accountledger/pkg/viewstore"
)

func main() {
	zl := zerolog.New(os.Stderr).With().Timestamp().Str("service", "projectord").Logger()
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
		ReadInterval: cfg.ProjectorReadInterval,
		Logger:       logger,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("connect event log")
	}

	ctx := context.Background()

	store, err := viewstore.New(ctx, viewstore.Config{
		URL:        cfg.MongoURL,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("connect view store")
	}
	defer store.Close(ctx)

	proj := projector.New(logClient, store,
		projector.WithStream(cfg.StreamName),
		projector.WithPendingInterval(cfg.PendingInterval),
		projector.WithLogger(logger),
		projector.WithMetrics(metrics),
	)

	r := runner.New([]runner.Service{proj}, runner.WithLogger(logger))
	if err := r.Run(ctx); err != nil {
		zl.Error().Err(err).Msg("runner exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("shut down meter provider")
	}
}
