package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/option"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"github.com/smallbiznis/seqdesk/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, client_id, title, description, organism, sample_count, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.ClientID,
		project.Title,
		project.Description,
		project.Organism,
		project.SampleCount,
		project.Status,
		project.CreatedAt,
		project.UpdatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return db.WithContext(ctx).Exec(
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		project.Status,
		project.UpdatedAt,
		project.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, client_id, title, description, organism, sample_count, status, created_at, updated_at
		 FROM projects WHERE id = ?`,
		id,
	).Scan(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == 0 {
		return nil, nil
	}
	return &project, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListProjectFilter, page pagination.Pagination) ([]*domain.Project, error) {
	var projects []*domain.Project
	stmt := db.WithContext(ctx).Model(&domain.Project{})
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repo) InsertMembers(ctx context.Context, db *gorm.DB, members []domain.TeamMember) error {
	return repository.New[domain.TeamMember](db).Insert(ctx, members...)
}

func (r *repo) ListMembers(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.TeamMember, error) {
	return repository.New[domain.TeamMember](db).Find(ctx,
		&domain.TeamMember{ProjectID: projectID},
		option.WithSortBy("created_at", "asc"),
		option.WithSortBy("id", "asc"),
	)
}
