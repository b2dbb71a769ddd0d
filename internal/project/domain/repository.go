package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, project *Project) error
	UpdateStatus(ctx context.Context, db *gorm.DB, project *Project) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Project, error)
	List(ctx context.Context, db *gorm.DB, filter ListProjectFilter, page pagination.Pagination) ([]*Project, error)
	InsertMembers(ctx context.Context, db *gorm.DB, members []TeamMember) error
	ListMembers(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]TeamMember, error)
}
