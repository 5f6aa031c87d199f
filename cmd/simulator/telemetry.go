package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/cdc-event-simulator/eventsim"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/oteladapters"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/postgresengine"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/promadapters"
	"github.com/AntonStoeckl/cdc-event-simulator/eventsim/sqliteengine"
	"github.com/AntonStoeckl/cdc-event-simulator/internal/config"
)

const (
	instrumentationName = "github.com/AntonStoeckl/cdc-event-simulator"
	logAttrRunID        = "run_id"
)

// telemetry holds the observability backends shared by the store and the simulator.
// Unset backends stay nil and are skipped by eventsim.Observer.
type telemetry struct {
	logger    *slog.Logger
	metrics   eventsim.MetricsCollector
	tracing   eventsim.TracingCollector
	registry  *prometheus.Registry
	providers *config.ObservabilityProviders
}

func newTelemetry(ctx context.Context, cfg *config.Config, runID string, out io.Writer) (*telemetry, error) {
	tel := &telemetry{}
	local := cfg.LogHandler(out)
	var collectors metricsFanout

	if cfg.OTelEnabled {
		providers, err := config.NewObservabilityProviders(ctx, cfg, version, runID)
		if err != nil {
			return nil, err
		}

		tel.providers = providers
		tel.tracing = oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(instrumentationName))
		collectors = append(collectors, oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(instrumentationName)))
		level, _ := cfg.SlogLevel()
		tel.logger = oteladapters.NewSlogBridgeLogger(instrumentationName, providers.LoggerProvider, local, level).Slog()
	} else {
		tel.logger = slog.New(local)
	}

	tel.logger = tel.logger.With(logAttrRunID, runID)

	if cfg.MetricsAddr != "" {
		tel.registry = promadapters.NewRegistry()
		collectors = append(collectors, promadapters.NewMetricsCollector(tel.registry))
	}

	switch len(collectors) {
	case 0:
	case 1:
		tel.metrics = collectors[0]
	default:
		tel.metrics = collectors
	}

	return tel, nil
}

func (t *telemetry) metricsHandler() http.Handler {
	return promadapters.Handler(t.registry)
}

func (t *telemetry) simulatorOptions() []eventsim.SimulatorOption {
	return []eventsim.SimulatorOption{
		eventsim.WithContextualLogger(t.logger),
		eventsim.WithMetrics(t.metrics),
		eventsim.WithTracing(t.tracing),
	}
}

func (t *telemetry) shutdown() error {
	if t.providers == nil {
		return nil
	}

	return t.providers.Shutdown()
}

// openStore connects the configured engine. The returned store is never a typed nil.
func openStore(ctx context.Context, cfg *config.Config, tel *telemetry) (eventsim.EventStore, error) {
	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}

	if cfg.Engine == config.EngineSQLite {
		store, err := sqliteengine.Connect(
			ctx,
			cfg.SQLitePath,
			policy,
			sqliteengine.WithTableName(cfg.TableName),
			sqliteengine.WithContextualLogger(tel.logger),
			sqliteengine.WithMetrics(tel.metrics),
			sqliteengine.WithTracing(tel.tracing),
		)
		if err != nil {
			return nil, err
		}

		return store, nil
	}

	adapterType, err := cfg.AdapterType()
	if err != nil {
		return nil, err
	}

	store, err := postgresengine.Connect(
		ctx,
		cfg.PostgresDSN(),
		adapterType,
		policy,
		postgresengine.WithTableName(cfg.TableName),
		postgresengine.WithContextualLogger(tel.logger),
		postgresengine.WithMetrics(tel.metrics),
		postgresengine.WithTracing(tel.tracing),
	)
	if err != nil {
		return nil, err
	}

	return store, nil
}

// metricsFanout records every measurement in all collectors.
type metricsFanout []eventsim.MetricsCollector

func (f metricsFanout) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	for _, c := range f {
		c.RecordDuration(metric, duration, labels)
	}
}

func (f metricsFanout) IncrementCounter(metric string, labels map[string]string) {
	for _, c := range f {
		c.IncrementCounter(metric, labels)
	}
}

func (f metricsFanout) RecordValue(metric string, value float64, labels map[string]string) {
	for _, c := range f {
		c.RecordValue(metric, value, labels)
	}
}

func (f metricsFanout) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	for _, c := range f {
		eventsim.Observer{Metrics: c}.RecordDuration(ctx, metric, duration, labels)
	}
}

func (f metricsFanout) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	for _, c := range f {
		eventsim.Observer{Metrics: c}.IncrementCounter(ctx, metric, labels)
	}
}

func (f metricsFanout) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	for _, c := range f {
		eventsim.Observer{Metrics: c}.RecordValue(ctx, metric, value, labels)
	}
}
