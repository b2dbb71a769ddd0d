package email

import (
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP provider, or a no-op one when no SMTP host
// is configured.
func NewFromConfig(cfg config.Config, m *metrics.Metrics, log *zap.Logger) Provider {
	if cfg.SMTP.Host == "" {
		log = log.Named("providers.email")
		log.Info("smtp host not configured, outgoing email disabled")
		return NewNoOp(log)
	}
	return NewSMTP(Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, m)
}
