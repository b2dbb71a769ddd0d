package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seqdesk/internal/auth/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.AdminUser{}).Count(&count).Error
	return count, err
}

func (r *repo) Create(ctx context.Context, user *domain.AdminUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.AdminUser, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repo) findOne(ctx context.Context, query string, arg any) (*domain.AdminUser, error) {
	var users []domain.AdminUser
	if err := r.db.WithContext(ctx).Where(query, arg).Limit(1).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &users[0], nil
}

func (r *repo) UpdatePassword(ctx context.Context, id snowflake.ID, hash string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.AdminUser{}).
		Where("id = ?", id).
		Updates(map[string]any{"password_hash": hash, "updated_at": at}).Error
}

func (r *repo) TouchLogin(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.AdminUser{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
