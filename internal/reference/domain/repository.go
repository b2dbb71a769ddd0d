package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Increment bumps the counter for (scope, period) and returns the new
	// value. It must run inside tx so the number is discarded on rollback.
	Increment(ctx context.Context, tx *gorm.DB, scope, period string, now time.Time) (int64, error)
}
