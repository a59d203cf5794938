// Package telemetry provides OpenTelemetry metrics for the pipeline.
//
// Telemetry is disabled by default (zero runtime overhead when off).
//
// # Configuration
//
//	OCP_OTEL_ENABLED=true    enable metrics (default: off)
//
// Metrics are written to stderr on shutdown via the stdout exporter;
// a single-shot CLI has no long-lived process to scrape.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/Obsolete-Robot/openclaw-pipeline"

var (
	shutdownFn        func(context.Context) error
	transitionCounter metric.Int64Counter
	dispatchCounter   metric.Int64Counter
)

// Enabled reports whether telemetry is active (OCP_OTEL_ENABLED=true).
func Enabled() bool {
	return os.Getenv("OCP_OTEL_ENABLED") == "true"
}

// Init configures the meter provider. When OCP_OTEL_ENABLED is not
// "true" this installs a no-op provider and returns immediately.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return initInstruments()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return fmt.Errorf("telemetry: exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	otel.SetMeterProvider(mp)
	shutdownFn = mp.Shutdown

	return initInstruments()
}

func initInstruments() error {
	meter := otel.GetMeterProvider().Meter(instrumentationScope)

	var err error
	transitionCounter, err = meter.Int64Counter("ocp.transitions",
		metric.WithDescription("Committed lifecycle transitions"))
	if err != nil {
		return fmt.Errorf("telemetry: transitions counter: %w", err)
	}
	dispatchCounter, err = meter.Int64Counter("ocp.dispatch.failures",
		metric.WithDescription("Failed notification deliveries"))
	if err != nil {
		return fmt.Errorf("telemetry: dispatch counter: %w", err)
	}
	return nil
}

// CountTransition records one committed lifecycle transition.
func CountTransition(ctx context.Context, event string) {
	if transitionCounter == nil {
		return
	}
	transitionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// CountDispatchFailure records one failed notification delivery.
func CountDispatchFailure(ctx context.Context, destination string) {
	if dispatchCounter == nil {
		return
	}
	dispatchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("destination", destination)))
}

// Shutdown flushes pending metrics. Safe to call when telemetry is off.
func Shutdown(ctx context.Context) {
	if shutdownFn != nil {
		_ = shutdownFn(ctx)
	}
}
