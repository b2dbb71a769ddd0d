package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	ClientID    int64
	QuotationID int64
	Status      Status
}

// OpenQuotationIndexSQL allows at most one non-void slip per quotation.
const OpenQuotationIndexSQL = "CREATE UNIQUE INDEX IF NOT EXISTS idx_charge_slips_open_quotation ON charge_slips (quotation_id) WHERE status <> 'void';"

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, slip *ChargeSlip) error
	Update(ctx context.Context, db *gorm.DB, slip *ChargeSlip, expected Status) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ChargeSlip, error)
	// FindOpenByQuotation returns the non-void slip billed for a quotation.
	FindOpenByQuotation(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) (*ChargeSlip, error)
	// LockQuotation holds the quotation row until the surrounding
	// transaction ends. Dialects without row locks skip it.
	LockQuotation(ctx context.Context, db *gorm.DB, quotationID snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*ChargeSlip, error)

	InsertLines(ctx context.Context, db *gorm.DB, lines []Line) error
	ListLines(ctx context.Context, db *gorm.DB, chargeSlipID snowflake.ID) ([]Line, error)
}
