package domain

import (
	"context"
	"errors"

	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type MemberInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role"`
}

// RegisterRequest is the portal form: the submitting client, the project
// and its team in one request.
type RegisterRequest struct {
	Client      clientdomain.IntakeRequest `json:"client" validate:"required"`
	Title       string                     `json:"title" validate:"required"`
	Description string                     `json:"description"`
	Organism    string                     `json:"organism"`
	SampleCount int64                      `json:"sample_count" validate:"gte=0"`
	Team        []MemberInput              `json:"team" validate:"dive"`
}

type RegisterResponse struct {
	Project       Project             `json:"project"`
	Client        clientdomain.Client `json:"client"`
	ClientCreated bool                `json:"client_created"`
}

type CreateProjectRequest struct {
	ClientID    string        `json:"client_id" validate:"required"`
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Organism    string        `json:"organism"`
	SampleCount int64         `json:"sample_count" validate:"gte=0"`
	Team        []MemberInput `json:"team" validate:"dive"`
}

type ListProjectRequest struct {
	PageToken string
	PageSize  int
	ClientID  string
	Status    string
}

type ListProjectFilter struct {
	ClientID int64
	Status   Status
}

type ListProjectResponse struct {
	pagination.PageInfo
	Projects []Project `json:"projects"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error)
	Create(ctx context.Context, req CreateProjectRequest) (Project, error)
	Get(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, req ListProjectRequest) (ListProjectResponse, error)
	UpdateStatus(ctx context.Context, id string, status string) (Project, error)
	AddMember(ctx context.Context, id string, member MemberInput) (TeamMember, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidMember      = errors.New("invalid_member")
	ErrInvalidSampleCount = errors.New("invalid_sample_count")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidTransition  = errors.New("invalid_status_transition")
	ErrNotFound           = errors.New("not_found")
)
