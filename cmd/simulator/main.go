// Command simulator feeds a change-data-capture pipeline: it connects to the database, makes sure
// the events table exists and then inserts one random event per interval until it is stopped.
//
// Configuration comes from SIM_* environment variables, optionally read from a .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/internal/config"
)

const (
	metricsPath           = "/metrics"
	metricsReadTimeout    = 5 * time.Second
	metricsShutdownPeriod = 5 * time.Second

	logMsgStarting        = "starting simulator"
	logMsgMetricsServing  = "serving metrics"
	logMsgMetricsFailed   = "metrics server failed"
	logMsgCloseFailed     = "closing database connection failed"
	logMsgTelemetryFailed = "shutting down telemetry failed"
	logAttrVersion        = "version"
	logAttrTarget         = "target"
	logAttrAddr           = "addr"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("simulator failed: %v", err)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runSimulator(ctx, cfg, os.Stdout)
}

// runSimulator wires all components for cfg and blocks until the simulation ends.
// A canceled ctx is a regular shutdown and returns nil.
func runSimulator(ctx context.Context, cfg *config.Config, out io.Writer) error {
	tel, err := newTelemetry(ctx, cfg, uuid.NewString(), out)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := tel.shutdown(); shutdownErr != nil {
			tel.logger.Error(logMsgTelemetryFailed, eventsim.AttrError, shutdownErr.Error())
		}
	}()

	tel.logger.InfoContext(
		ctx,
		logMsgStarting,
		logAttrVersion, version,
		eventsim.AttrEngine, cfg.Engine,
		logAttrTarget, cfg.RedactedTarget(),
		eventsim.AttrTable, cfg.TableName,
		eventsim.AttrInterval, cfg.Interval.String(),
		eventsim.AttrErrorPolicy, cfg.ErrorPolicy,
	)

	var metricsListener net.Listener
	if cfg.MetricsAddr != "" && tel.registry != nil {
		metricsListener, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listening for metrics: %w", err)
		}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancelRun() // the metrics server stops with the simulation

		return simulate(gctx, cfg, tel)
	})

	if metricsListener != nil {
		g.Go(func() error {
			return serveMetrics(gctx, metricsListener, tel)
		})
	}

	return g.Wait()
}

func simulate(ctx context.Context, cfg *config.Config, tel *telemetry) error {
	store, err := openStore(ctx, cfg, tel)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("connecting to database: %w", err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			tel.logger.Error(logMsgCloseFailed, eventsim.AttrError, closeErr.Error())
		}
	}()

	if err := store.EnsureSchema(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	options, err := cfg.SimulatorOptions()
	if err != nil {
		return err
	}

	simulator, err := eventsim.NewSimulator(store, append(options, tel.simulatorOptions()...)...)
	if err != nil {
		return err
	}

	return simulator.Run(ctx)
}

func serveMetrics(ctx context.Context, listener net.Listener, tel *telemetry) error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, tel.metricsHandler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		tel.logger.InfoContext(ctx, logMsgMetricsServing, logAttrAddr, listener.Addr().String())
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		tel.logger.ErrorContext(ctx, logMsgMetricsFailed, eventsim.AttrError, err.Error())
		return fmt.Errorf("serving metrics: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownPeriod)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("stopping metrics server: %w", err)
		}

		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving metrics: %w", err)
		}

		return nil
	}
}
