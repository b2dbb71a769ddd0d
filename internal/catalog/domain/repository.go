package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, def *ServiceDefinition) error
	Update(ctx context.Context, db *gorm.DB, def *ServiceDefinition) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ServiceDefinition, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*ServiceDefinition, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ServiceDefinition, error)
}

// Cache stores the active catalog list. Implementations may drop entries
// at any time.
type Cache interface {
	GetActive(ctx context.Context) ([]ServiceDefinition, bool)
	SetActive(ctx context.Context, defs []ServiceDefinition)
	Invalidate(ctx context.Context)
}
