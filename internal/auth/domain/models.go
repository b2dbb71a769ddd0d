// Package domain contains core types for admin authentication.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// AdminUser is a back-office account. Portal clients never log in.
type AdminUser struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Role         Role         `gorm:"type:text;not null" json:"role"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	Active       bool         `gorm:"not null;default:true" json:"active"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AdminUser) TableName() string { return "admin_users" }

// Claims is the JWT payload. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	UserID snowflake.ID
	Email  string
	Role   Role
}
