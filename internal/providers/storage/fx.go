package storage

import (
	"context"
	"time"

	"github.com/smallbiznis/seqdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(NewFromConfig),
)

// NewFromConfig uses minio when an endpoint is configured and falls back to
// the in-memory store otherwise.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Store, error) {
	log = log.Named("providers.storage")
	if !cfg.Storage.Enabled() {
		log.Warn("object storage not configured, documents are kept in memory")
		return NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return NewMinio(ctx, MinioConfig{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, log)
}
