package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"gorm.io/gorm"
)

// insertBatchSize keeps multi-row inserts under the sqlite bind limit.
const insertBatchSize = 200

type gormStore[T any] struct {
	db *gorm.DB
}

func New[T any](db *gorm.DB) Store[T] {
	return &gormStore[T]{db: db}
}

func (s *gormStore[T]) WithTx(tx *gorm.DB) Store[T] {
	return &gormStore[T]{db: tx}
}

func (s *gormStore[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]T, error) {
	var rows []T
	if err := s.scoped(ctx, filter, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil without an error when nothing matches.
func (s *gormStore[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := s.scoped(ctx, filter, opts).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *gormStore[T]) Count(ctx context.Context, filter *T) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(new(T)).Where(filter).Count(&n).Error
	return n, err
}

func (s *gormStore[T]) Insert(ctx context.Context, rows ...T) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error
}

// DeleteWhere refuses an empty filter so a zero value never wipes the table.
func (s *gormStore[T]) DeleteWhere(ctx context.Context, filter *T) (int64, error) {
	if filter == nil {
		return 0, gorm.ErrMissingWhereClause
	}
	res := s.db.WithContext(ctx).Where(filter).Delete(new(T))
	return res.RowsAffected, res.Error
}

func (s *gormStore[T]) scoped(ctx context.Context, filter *T, opts []option.QueryOption) *gorm.DB {
	stmt := s.db.WithContext(ctx)
	if filter != nil {
		stmt = stmt.Where(filter)
	}
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
