package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/kroma-labs/sentinel-conn/conn"
	"github.com/kroma-labs/sentinel-conn/example/postgres/internal/config"
	"github.com/kroma-labs/sentinel-conn/example/postgres/internal/database"
	"github.com/kroma-labs/sentinel-conn/example/postgres/internal/telemetry"
)

func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// 1. Setup OpenTelemetry (Tracing + Metrics)
	shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup OTel")
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown error")
		}
	}()

	// 2. Start Prometheus Metrics Server
	metricsServer := &http.Server{
		Addr:              config.MetricsPort,
		Handler:           telemetry.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", config.MetricsPort).Msg("starting prometheus metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	// 3. Establish the instrumented connection
	db, err := database.New(ctx, log)
	if err != nil {
		if conn.IsConfigurationError(err) {
			log.Fatal().Err(err).Msg("connected, but could not read the server identity")
		}
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer db.Close()

	tracer := otel.Tracer("example-app")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := db.CreateTable(ctx); err != nil {
		log.Error().Err(err).Msg("failed to create table")
	}

	ticker := time.NewTicker(time.Duration(config.OperationInterval) * time.Second)
	defer ticker.Stop()

	log.Info().
		Str("metrics", "http://localhost:2112/metrics").
		Msg("example app started, press Ctrl+C to stop")

	// 4. Perform database operations in a loop. The connection is used by
	// this goroutine only.
	for {
		select {
		case <-ticker.C:
			ctx, span := tracer.Start(ctx, "db-operations")

			if err := db.InsertUsers(ctx); err != nil {
				log.Error().Err(err).Msg("failed to insert users")
			}
			if err := db.QueryUsers(ctx); err != nil {
				log.Error().Err(err).Msg("failed to query users")
			}
			if err := db.InsertWithTransaction(ctx); err != nil {
				log.Error().Err(err).Msg("failed transaction")
			}
			if err := db.Report(ctx); err != nil {
				log.Error().Err(err).Msg("failed report")
			}

			span.End()

		case <-sigChan:
			log.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("metrics server shutdown error")
			}
			return
		}
	}
}
