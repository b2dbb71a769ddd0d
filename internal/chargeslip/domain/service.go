package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
)

type CreateChargeSlipRequest struct {
	ClientID   string           `json:"client_id" validate:"required"`
	ProjectID  string           `json:"project_id"`
	IsInternal *bool            `json:"is_internal"`
	Lines      []lineitem.Input `json:"lines" validate:"required,min=1,dive"`
	Notes      string           `json:"notes"`
}

type FromQuotationRequest struct {
	QuotationID string `json:"quotation_id" validate:"required"`
	Notes       string `json:"notes"`
}

type MarkPaidRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type VoidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ListChargeSlipRequest struct {
	PageToken   string
	PageSize    int
	ClientID    string
	QuotationID string
	Status      string
}

type ListChargeSlipResponse struct {
	pagination.PageInfo
	ChargeSlips []ChargeSlip `json:"charge_slips"`
}

type PDFResponse struct {
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
}

type Service interface {
	CreateFromQuotation(ctx context.Context, req FromQuotationRequest) (ChargeSlip, error)
	Create(ctx context.Context, req CreateChargeSlipRequest) (ChargeSlip, error)
	Get(ctx context.Context, id string) (ChargeSlip, error)
	List(ctx context.Context, req ListChargeSlipRequest) (ListChargeSlipResponse, error)
	MarkPaid(ctx context.Context, id string, req MarkPaidRequest) (ChargeSlip, error)
	Void(ctx context.Context, id string, req VoidRequest) (ChargeSlip, error)
	RenderPDF(ctx context.Context, id string) (PDFResponse, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidClient      = errors.New("invalid_client")
	ErrInvalidProject     = errors.New("invalid_project")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidTransition  = errors.New("invalid_status_transition")
	ErrQuotationNotIssued = errors.New("quotation_not_approved")
	ErrAlreadyBilled      = errors.New("quotation_already_billed")
	ErrNoBillableLines    = errors.New("no_billable_lines")
	ErrVoidReasonRequired = errors.New("void_reason_required")
	ErrNotFound           = errors.New("not_found")
)
