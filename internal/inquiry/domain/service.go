package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/seqdesk/internal/lineitem"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type SubmitRequest struct {
	ContactName    string           `json:"contact_name" validate:"required"`
	Email          string           `json:"email" validate:"required,email"`
	Phone          string           `json:"phone"`
	Institution    string           `json:"institution"`
	Department     string           `json:"department"`
	ClaimsInternal bool             `json:"is_internal"`
	ProjectTitle   string           `json:"project_title"`
	Summary        string           `json:"summary"`
	Services       []lineitem.Input `json:"services" validate:"required,min=1,dive"`
}

type SubmitResponse struct {
	TrackingCode string `json:"tracking_code"`
	Status       Status `json:"status"`
}

type ReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=reviewed declined"`
	Notes  string `json:"notes"`
}

// ConvertRequest lets admins confirm or override the internal claim before
// the quotation draft is priced.
type ConvertRequest struct {
	IsInternal *bool  `json:"is_internal"`
	ProjectID  string `json:"project_id"`
	Notes      string `json:"notes"`
}

type ConvertResponse struct {
	Inquiry   Inquiry                   `json:"inquiry"`
	Quotation quotationdomain.Quotation `json:"quotation"`
}

type ListInquiryRequest struct {
	PageToken string
	PageSize  int
	Status    string
	Email     string
}

type ListInquiryResponse struct {
	pagination.PageInfo
	Inquiries []Inquiry `json:"inquiries"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	Track(ctx context.Context, code string) (TrackingView, error)
	Get(ctx context.Context, id string) (Inquiry, error)
	List(ctx context.Context, req ListInquiryRequest) (ListInquiryResponse, error)
	Review(ctx context.Context, id string, req ReviewRequest) (Inquiry, error)
	Convert(ctx context.Context, id string, req ConvertRequest) (ConvertResponse, error)
	// ListPendingOlderThan returns open inquiries submitted before now-age.
	ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]Inquiry, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidContact      = errors.New("invalid_contact")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrNoServices          = errors.New("no_services_requested")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrInvalidTrackingCode = errors.New("invalid_tracking_code")
	ErrNotFound            = errors.New("not_found")
)
