package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	ClientID  int64
	ProjectID int64
	Status    Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, q *Quotation) error
	// Update writes the mutable header columns. It only touches the row
	// while it is still in expected status and reports whether it did.
	Update(ctx context.Context, db *gorm.DB, q *Quotation, expected Status) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Quotation, error)
	ListExpirable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Quotation, error)

	ReplaceLines(ctx context.Context, db *gorm.DB, quotationID snowflake.ID, lines []Line) error
	ListLines(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) ([]Line, error)
}
