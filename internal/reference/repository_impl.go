package reference

import (
	"context"
	"time"

	"github.com/smallbiznis/seqdesk/internal/reference/domain"
	"github.com/smallbiznis/seqdesk/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func NewRepository() domain.Repository {
	return &repository{}
}

func (r *repository) Increment(ctx context.Context, tx *gorm.DB, scope, period string, now time.Time) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		res := tx.WithContext(ctx).Exec(
			`UPDATE reference_sequences SET value = value + 1, updated_at = ? WHERE scope = ? AND period = ?`,
			now, scope, period,
		)
		if res.Error != nil {
			return 0, res.Error
		}

		if res.RowsAffected == 0 {
			err := tx.WithContext(ctx).Exec(
				`INSERT INTO reference_sequences (scope, period, value, updated_at) VALUES (?, ?, 1, ?)`,
				scope, period, now,
			).Error
			if err != nil {
				// a concurrent writer created the row first
				if db.IsDuplicateKeyErr(err) {
					continue
				}
				return 0, err
			}
		}

		var value int64
		err := tx.WithContext(ctx).Raw(
			`SELECT value FROM reference_sequences WHERE scope = ? AND period = ?`,
			scope, period,
		).Scan(&value).Error
		if err != nil {
			return 0, err
		}
		return value, nil
	}

	return 0, ErrSequenceContention
}
