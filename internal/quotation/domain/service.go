package domain

import (
	"context"
	"errors"
	"html/template"

	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type PreviewRequest struct {
	Lines      []lineitem.Input `json:"lines" validate:"dive"`
	IsInternal bool             `json:"is_internal"`
}

// PreviewResponse is what the summary panel shows while a quotation is
// being put together.
type PreviewResponse struct {
	Summary pricing.Summary `json:"summary"`
	HTML    template.HTML   `json:"html"`
}

type CreateQuotationRequest struct {
	ClientID   string           `json:"client_id" validate:"required"`
	ProjectID  string           `json:"project_id"`
	InquiryID  string           `json:"-"`
	IsInternal *bool            `json:"is_internal"`
	Lines      []lineitem.Input `json:"lines" validate:"required,min=1,dive"`
	CC         []string         `json:"cc" validate:"dive,email"`
	Notes      string           `json:"notes"`
}

type ReplaceLinesRequest struct {
	Lines []lineitem.Input `json:"lines" validate:"required,min=1,dive"`
	Notes *string          `json:"notes"`
	CC    []string         `json:"cc" validate:"dive,email"`
}

type DecisionRequest struct {
	Notes string `json:"notes"`
}

type ListQuotationRequest struct {
	PageToken string
	PageSize  int
	ClientID  string
	ProjectID string
	Status    string
}

type ListQuotationResponse struct {
	pagination.PageInfo
	Quotations []Quotation `json:"quotations"`
}

type PDFResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
}

type Service interface {
	Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error)
	CreateDraft(ctx context.Context, req CreateQuotationRequest) (Quotation, error)
	ReplaceLines(ctx context.Context, id string, req ReplaceLinesRequest) (Quotation, error)
	Get(ctx context.Context, id string) (Quotation, error)
	List(ctx context.Context, req ListQuotationRequest) (ListQuotationResponse, error)
	Submit(ctx context.Context, id string) (Quotation, error)
	Approve(ctx context.Context, id string, req DecisionRequest) (Quotation, error)
	Reject(ctx context.Context, id string, req DecisionRequest) (Quotation, error)
	Summary(ctx context.Context, id string) (pricing.Summary, error)
	RenderSummary(ctx context.Context, id string) (template.HTML, error)
	RenderPDF(ctx context.Context, id string) (PDFResponse, error)
	Send(ctx context.Context, id string) (Quotation, error)
	ExpireDue(ctx context.Context) (int, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidProject    = errors.New("invalid_project")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrNotEditable       = errors.New("quotation_not_editable")
	ErrNoBillableLines   = errors.New("no_billable_lines")
	ErrNoRecipients      = errors.New("no_recipients")
	ErrNotFound          = errors.New("not_found")
)
