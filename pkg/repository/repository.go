// Package repository is a generic gorm store for child tables that need no
// hand-written queries, such as project team members.
package repository

import (
	"context"

	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"gorm.io/gorm"
)

type Store[T any] interface {
	WithTx(tx *gorm.DB) Store[T]
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]T, error)
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, filter *T) (int64, error)
	Insert(ctx context.Context, rows ...T) error
	DeleteWhere(ctx context.Context, filter *T) (int64, error)
}
