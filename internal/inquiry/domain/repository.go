package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	Email  string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inquiry *Inquiry) error
	// Update writes the mutable fields only while the row still has the
	// expected status.
	Update(ctx context.Context, db *gorm.DB, inquiry *Inquiry, expected Status) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Inquiry, error)
	FindByTrackingCode(ctx context.Context, db *gorm.DB, code string) (*Inquiry, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Inquiry, error)
	ListPendingBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Inquiry, error)
}
