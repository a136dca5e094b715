package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	sloglogrus "github.com/samber/slog-logrus/v2"
	slogmulti "github.com/samber/slog-multi"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	logglobal "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	log *slog.Logger

	tracerProvider *trace.TracerProvider
	metricProvider *metric.MeterProvider
	loggerProvider *log.LoggerProvider
}

func (client *Client) Flush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.metricProvider.ForceFlush(ctx)
	})
	g.Go(func() error {
		return client.loggerProvider.ForceFlush(ctx)
	})
	g.Go(func() error {
		return client.tracerProvider.ForceFlush(ctx)
	})

	return g.Wait()
}

func (client *Client) Shutdown(ctx context.Context) {
	if err := client.metricProvider.Shutdown(ctx); err != nil {
		client.log.ErrorContext(ctx, "error shutting down metric provider", "error", err.Error())
	}
	if err := client.tracerProvider.Shutdown(ctx); err != nil {
		client.log.ErrorContext(ctx, "error shutting down tracer provider", "error", err.Error())
	}
	if err := client.loggerProvider.Shutdown(ctx); err != nil {
		client.log.ErrorContext(ctx, "error shutting down logger provider", "error", err.Error())
	}
}

func setEnvIfNotSet(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		os.Setenv(key, value)
	}
}

type exporters struct {
	metric metric.Reader
	span   trace.SpanExporter
	log    log.Exporter
}

// otlpExporters pushes everything to an OTLP http collector.
func otlpExporters(ctx context.Context, endpoint string) (exporters, error) {
	var e exporters

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return e, fmt.Errorf("failed to initialize metric exporter: %w", err)
	}
	e.metric = metric.NewPeriodicReader(metricExporter)

	e.span, err = otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return e, fmt.Errorf("failed to initialize trace exporter: %w", err)
	}

	e.log, err = otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithRetry(otlploghttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return e, fmt.Errorf("failed to initialize log exporter: %w", err)
	}

	return e, nil
}

// envExporters follows the OTEL_*_EXPORTER variables, exporting nothing
// unless they are set.
func envExporters(ctx context.Context) (exporters, error) {
	setEnvIfNotSet("OTEL_TRACES_EXPORTER", "none")
	setEnvIfNotSet("OTEL_LOGS_EXPORTER", "none")
	setEnvIfNotSet("OTEL_METRICS_EXPORTER", "none")

	var e exporters
	var err error

	e.metric, err = autoexport.NewMetricReader(ctx)
	if err != nil {
		return e, fmt.Errorf("failed to initialize metric exporter: %w", err)
	}
	e.span, err = autoexport.NewSpanExporter(ctx)
	if err != nil {
		return e, fmt.Errorf("failed to initialize trace exporter: %w", err)
	}
	e.log, err = autoexport.NewLogExporter(ctx)
	if err != nil {
		return e, fmt.Errorf("failed to initialize log exporter: %w", err)
	}

	return e, nil
}

// Setup installs the global meter, tracer and logger providers. Metrics are
// always readable through the prometheus registry, an empty endpoint leaves
// the other exporters to the OTEL_* environment.
func Setup(ctx context.Context, appName, endpoint string) (*Client, error) {
	client := &Client{
		log: slog.With("component", "telemetry"),
	}
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(cause error) {
		client.log.ErrorContext(ctx, "otel error", "error", cause.Error())
	}))

	hostName, _ := os.Hostname()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
			semconv.HostName(hostName),
			semconv.ServiceInstanceID(uuid.NewString()),
		),
	)
	if err != nil {
		return nil, err
	}

	var e exporters
	if endpoint != "" {
		e, err = otlpExporters(ctx, endpoint)
	} else {
		e, err = envExporters(ctx)
	}
	if err != nil {
		return nil, err
	}

	promExporter, err := prometheus.New(prometheus.WithNamespace(appName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prometheus exporter: %w", err)
	}
	client.metricProvider = metric.NewMeterProvider(
		metric.WithResource(r),
		metric.WithReader(e.metric),
		metric.WithReader(promExporter),
	)
	otel.SetMeterProvider(client.metricProvider)

	client.tracerProvider = trace.NewTracerProvider(
		trace.WithResource(r),
		trace.WithBatcher(e.span, trace.WithExportTimeout(time.Second)),
	)
	otel.SetTracerProvider(client.tracerProvider)

	client.loggerProvider = log.NewLoggerProvider(
		log.WithResource(r),
		log.WithProcessor(log.NewBatchProcessor(e.log, log.WithExportInterval(time.Second))),
	)
	logglobal.SetLoggerProvider(client.loggerProvider)

	slog.SetDefault(slog.New(slogmulti.Fanout(
		otelslog.NewHandler(appName, otelslog.WithLoggerProvider(client.loggerProvider)),
		sloglogrus.Option{Level: slog.LevelDebug, Logger: logrus.StandardLogger()}.NewLogrusHandler(),
	)))

	// recreate telemetry logger
	client.log = slog.With("component", "telemetry")
	client.log.InfoContext(ctx, "telemetry initialized", "endpoint", endpoint)

	return client, nil
}
