package observability

import (
	"strings"

	"github.com/smallbiznis/seqdesk/internal/config"
)

// Config is the slice of application config the telemetry stack reads.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Development bool
	Telemetry   config.TelemetryConfig
}

func NewConfig(cfg config.Config) Config {
	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = "seqdesk"
	}
	return Config{
		ServiceName: name,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Development: cfg.IsDevelopment(),
		Telemetry:   cfg.Telemetry,
	}
}

// Debug enables stack traces in request logs.
func (c Config) Debug() bool {
	return c.Development || c.Telemetry.LogLevel == "debug"
}
