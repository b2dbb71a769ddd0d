package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type ListClientRequest struct {
	PageToken  string
	PageSize   int
	Name       string
	Email      string
	IsInternal *bool
}

type ListClientFilter struct {
	Name       string
	Email      string
	IsInternal *bool
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type CreateClientRequest struct {
	Name        string         `json:"name" validate:"required"`
	Email       string         `json:"email" validate:"required,email"`
	Institution string         `json:"institution"`
	Department  string         `json:"department"`
	Phone       string         `json:"phone"`
	IsInternal  bool           `json:"is_internal"`
	Metadata    map[string]any `json:"metadata"`
}

// IntakeRequest is the client record a public form may create. The internal
// designation drives the discount, so the form can only claim it; an admin
// sets it through Create or Update.
type IntakeRequest struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Institution    string `json:"institution"`
	Department     string `json:"department"`
	Phone          string `json:"phone"`
	ClaimsInternal bool   `json:"claims_internal"`
}

// MetadataClaimsInternal marks a client that said it was internal on intake.
const MetadataClaimsInternal = "claims_internal"

type UpdateClientRequest struct {
	ID          string         `json:"-"`
	Name        *string        `json:"name"`
	Institution *string        `json:"institution"`
	Department  *string        `json:"department"`
	Phone       *string        `json:"phone"`
	IsInternal  *bool          `json:"is_internal"`
	Metadata    map[string]any `json:"metadata"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (Client, error)
	Update(ctx context.Context, req UpdateClientRequest) (Client, error)
	GetByID(ctx context.Context, id string) (Client, error)
	List(ctx context.Context, req ListClientRequest) (ListClientResponse, error)
	// FindOrCreate returns the client with req.Email, creating an external
	// client when absent. Existing clients are returned unchanged.
	FindOrCreate(ctx context.Context, req IntakeRequest) (Client, bool, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidID      = errors.New("invalid_id")
	ErrDuplicateEmail = errors.New("duplicate_email")
	ErrNotFound       = errors.New("not_found")
)
