package option

import (
	"fmt"
	"strconv"
	"time"

	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it runs.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type QueryOptionFunc func(*gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOffset(offset int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithSortBy orders by column; direction is "asc" or "desc".
func WithSortBy(column, direction string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if direction != "asc" {
			direction = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction))
	})
}

func WithWhere(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// ApplyPagination applies keyset pagination over (created_at, id), newest
// first. It fetches one extra row so callers can tell whether more exist.
// A malformed token fails the query with pagination.ErrInvalidPageToken.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := pagination.PageSize(page.PageSize)
		if page.PageToken != "" {
			createdAt, id, err := parseCursor(page.PageToken)
			if err != nil {
				_ = db.AddError(pagination.ErrInvalidPageToken)
				return db
			}
			db = db.Where("((created_at < ?) OR (created_at = ? AND id < ?))", createdAt, createdAt, id)
		}
		return db.Limit(size + 1)
	})
}

func parseCursor(token string) (time.Time, int64, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return time.Time{}, 0, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return time.Time{}, 0, err
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil {
		return time.Time{}, 0, err
	}
	return createdAt, id, nil
}
