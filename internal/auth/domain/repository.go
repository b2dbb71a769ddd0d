package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *AdminUser) error
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	FindByID(ctx context.Context, id snowflake.ID) (*AdminUser, error)
	UpdatePassword(ctx context.Context, id snowflake.ID, hash string, at time.Time) error
	TouchLogin(ctx context.Context, id snowflake.ID, at time.Time) error
}
