package observability

import (
	"github.com/smallbiznis/seqdesk/internal/observability/logger"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"github.com/smallbiznis/seqdesk/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		NewConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName: cfg.ServiceName,
				Environment: cfg.Environment,
				Version:     cfg.Version,
				Level:       cfg.Telemetry.LogLevel,
				Format:      cfg.Telemetry.LogFormat,
				Development: cfg.Development,
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Telemetry.TracingEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
				SamplingRatio:    cfg.Telemetry.SampleRatio,
			}
		},
		tracing.NewProvider,
		func(cfg Config) metrics.Config {
			return metrics.Config{ServiceName: cfg.ServiceName, Environment: cfg.Environment}
		},
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// The tracer provider is only consumed through the otel globals.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
