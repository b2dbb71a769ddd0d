package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Catalog    lineitem.Catalog
	Clients    clientdomain.Service
	Quotations quotationdomain.Service
	Profile    *config.DocumentProfileHolder
	Email      email.Provider
	Audit      auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	catalog    lineitem.Catalog
	clients    clientdomain.Service
	quotations quotationdomain.Service
	profile    *config.DocumentProfileHolder
	email      email.Provider
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("inquiry.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		catalog:    p.Catalog,
		clients:    p.Clients,
		quotations: p.Quotations,
		profile:    p.Profile,
		email:      p.Email,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResponse, error) {
	name := strings.TrimSpace(req.ContactName)
	if name == "" {
		return domain.SubmitResponse{}, domain.ErrInvalidContact
	}
	address, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if len(req.Services) == 0 {
		return domain.SubmitResponse{}, domain.ErrNoServices
	}

	// unknown or archived services are rejected at intake
	items, err := lineitem.Build(ctx, s.catalog, req.Services)
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	now := s.clock.Now()
	inquiry := domain.Inquiry{
		ID:             s.genID.Generate(),
		TrackingCode:   ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		ContactName:    name,
		Email:          address,
		Phone:          strings.TrimSpace(req.Phone),
		Institution:    strings.TrimSpace(req.Institution),
		Department:     strings.TrimSpace(req.Department),
		ClaimsInternal: req.ClaimsInternal,
		ProjectTitle:   strings.TrimSpace(req.ProjectTitle),
		Summary:        strings.TrimSpace(req.Summary),
		Services:       datatypes.NewJSONSlice(req.Services),
		Status:         domain.StatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &inquiry); err != nil {
		s.log.Error("failed to insert inquiry", zap.Error(err))
		return domain.SubmitResponse{}, err
	}
	s.metrics.RecordInquirySubmitted(inquiry.ClaimsInternal)

	requested := make([]string, 0, len(items))
	for _, item := range items {
		requested = append(requested, describe(item))
	}
	err = s.email.SendTemplate(ctx, []string{inquiry.Email}, email.TemplateInquiryReceived, map[string]any{
		"name":          inquiry.ContactName,
		"center_name":   s.profile.Get().CenterName,
		"tracking_code": inquiry.TrackingCode,
		"services":      requested,
	})
	if err != nil {
		// the inquiry is stored; the acknowledgement is best effort
		s.log.Warn("failed to send inquiry acknowledgement", zap.String("tracking_code", inquiry.TrackingCode), zap.Error(err))
	}

	s.log.Info("inquiry submitted",
		zap.String("inquiry_id", inquiry.ID.String()),
		zap.String("tracking_code", inquiry.TrackingCode),
		zap.Int("services", len(items)),
	)
	return domain.SubmitResponse{TrackingCode: inquiry.TrackingCode, Status: inquiry.Status}, nil
}

func (s *Service) Track(ctx context.Context, code string) (domain.TrackingView, error) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return domain.TrackingView{}, domain.ErrInvalidTrackingCode
	}
	inquiry, err := s.repo.FindByTrackingCode(ctx, s.db, parsed.String())
	if err != nil {
		return domain.TrackingView{}, err
	}
	if inquiry == nil {
		return domain.TrackingView{}, domain.ErrNotFound
	}
	return domain.TrackingView{
		TrackingCode: inquiry.TrackingCode,
		Status:       inquiry.Status,
		SubmittedAt:  inquiry.CreatedAt,
		UpdatedAt:    inquiry.UpdatedAt,
	}, nil
}

func (s *Service) Get(ctx context.Context, raw string) (domain.Inquiry, error) {
	return s.find(ctx, raw)
}

func (s *Service) List(ctx context.Context, req domain.ListInquiryRequest) (domain.ListInquiryResponse, error) {
	filter := domain.ListFilter{Email: strings.ToLower(strings.TrimSpace(req.Email))}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return domain.ListInquiryResponse{}, err
		}
		filter.Status = status
	}

	pageSize := pagination.PageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListInquiryResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(i *domain.Inquiry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        i.ID.String(),
			CreatedAt: i.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	inquiries := make([]domain.Inquiry, 0, len(items))
	for _, item := range items {
		if item != nil {
			inquiries = append(inquiries, *item)
		}
	}
	return domain.ListInquiryResponse{PageInfo: *pageInfo, Inquiries: inquiries}, nil
}

func (s *Service) Review(ctx context.Context, raw string, req domain.ReviewRequest) (domain.Inquiry, error) {
	status, err := parseStatus(req.Status)
	if err != nil {
		return domain.Inquiry{}, err
	}
	if status != domain.StatusReviewed && status != domain.StatusDeclined {
		return domain.Inquiry{}, domain.ErrInvalidStatus
	}

	inquiry, err := s.find(ctx, raw)
	if err != nil {
		return domain.Inquiry{}, err
	}
	if !inquiry.Status.CanTransition(status) {
		return domain.Inquiry{}, domain.ErrInvalidTransition
	}

	from := inquiry.Status
	s.markReviewed(ctx, &inquiry)
	inquiry.Status = status
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		inquiry.ReviewNotes = notes
	}
	if err := s.transition(ctx, &inquiry, from, map[string]any{"notes": inquiry.ReviewNotes}); err != nil {
		return domain.Inquiry{}, err
	}
	return inquiry, nil
}

// Convert turns an open inquiry into a quotation draft priced against the
// catalog as it is now. A submitted inquiry is reviewed on the way.
func (s *Service) Convert(ctx context.Context, raw string, req domain.ConvertRequest) (domain.ConvertResponse, error) {
	inquiry, err := s.find(ctx, raw)
	if err != nil {
		return domain.ConvertResponse{}, err
	}
	if !inquiry.Status.Open() {
		return domain.ConvertResponse{}, domain.ErrInvalidTransition
	}

	client, _, err := s.clients.FindOrCreate(ctx, clientdomain.IntakeRequest{
		Name:           inquiry.ContactName,
		Email:          inquiry.Email,
		Institution:    inquiry.Institution,
		Department:     inquiry.Department,
		Phone:          inquiry.Phone,
		ClaimsInternal: inquiry.ClaimsInternal,
	})
	if err != nil {
		return domain.ConvertResponse{}, err
	}

	// The inquiry is claimed before any draft exists; a concurrent convert
	// fails on this update.
	previous := inquiry
	from := inquiry.Status
	s.markReviewed(ctx, &inquiry)
	clientID := client.ID
	inquiry.Status = domain.StatusQuoted
	inquiry.ClientID = &clientID
	if err := s.claim(ctx, &inquiry, from); err != nil {
		return domain.ConvertResponse{}, err
	}

	notes := strings.TrimSpace(req.Notes)
	if notes == "" && inquiry.ProjectTitle != "" {
		notes = "Project: " + inquiry.ProjectTitle
	}
	quotation, err := s.quotations.CreateDraft(ctx, quotationdomain.CreateQuotationRequest{
		ClientID:   client.ID.String(),
		ProjectID:  strings.TrimSpace(req.ProjectID),
		InquiryID:  inquiry.ID.String(),
		IsInternal: req.IsInternal,
		Lines:      inquiry.Services,
		Notes:      notes,
	})
	if err != nil {
		if _, rerr := s.repo.Update(ctx, s.db, &previous, domain.StatusQuoted); rerr != nil {
			s.log.Error("failed to release inquiry after draft error",
				zap.String("inquiry_id", inquiry.ID.String()),
				zap.Error(rerr),
			)
		}
		return domain.ConvertResponse{}, err
	}

	quotationID := quotation.ID
	inquiry.QuotationID = &quotationID
	if err := s.claim(ctx, &inquiry, domain.StatusQuoted); err != nil {
		s.log.Warn("quotation draft left without inquiry link",
			zap.String("inquiry_id", inquiry.ID.String()),
			zap.String("quotation_id", quotation.ID.String()),
			zap.Error(err),
		)
		return domain.ConvertResponse{}, err
	}
	s.record(ctx, &inquiry, from, map[string]any{
		"quotation_id": quotation.ID.String(),
		"reference":    quotation.Reference,
	})
	return domain.ConvertResponse{Inquiry: inquiry, Quotation: quotation}, nil
}

func (s *Service) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]domain.Inquiry, error) {
	return s.repo.ListPendingBefore(ctx, s.db, s.clock.Now().Add(-age), limit)
}

func (s *Service) markReviewed(ctx context.Context, inquiry *domain.Inquiry) {
	now := s.clock.Now()
	inquiry.UpdatedAt = now
	if inquiry.ReviewedAt != nil {
		return
	}
	inquiry.ReviewedAt = &now
	if _, id := obscontext.ActorFromContext(ctx); id != "" {
		inquiry.ReviewedBy = &id
	}
}

func (s *Service) transition(ctx context.Context, inquiry *domain.Inquiry, from domain.Status, metadata map[string]any) error {
	if err := s.claim(ctx, inquiry, from); err != nil {
		return err
	}
	s.record(ctx, inquiry, from, metadata)
	return nil
}

// claim writes inquiry only while the stored row is still in status from.
func (s *Service) claim(ctx context.Context, inquiry *domain.Inquiry, from domain.Status) error {
	ok, err := s.repo.Update(ctx, s.db, inquiry, from)
	if err != nil {
		s.log.Error("failed to update inquiry", zap.String("inquiry_id", inquiry.ID.String()), zap.Error(err))
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) record(ctx context.Context, inquiry *domain.Inquiry, from domain.Status, metadata map[string]any) {
	metadata["from"] = string(from)
	metadata["tracking_code"] = inquiry.TrackingCode
	targetID := inquiry.ID.String()
	action := "inquiry." + string(inquiry.Status)
	if err := s.audit.AuditLog(ctx, "", nil, action, "inquiry", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit inquiry", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) find(ctx context.Context, raw string) (domain.Inquiry, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.Inquiry{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Inquiry{}, err
	}
	if item == nil {
		return domain.Inquiry{}, domain.ErrNotFound
	}
	return *item, nil
}

func describe(item lineitem.Item) string {
	out := item.Name
	if item.Quantity > 1 {
		out = fmt.Sprintf("%s x%d", out, item.Quantity)
	}
	if item.BillingCount != nil && *item.BillingCount > 0 {
		unit := "samples"
		if item.PricingModel == pricing.ModelTieredByParticipants {
			unit = "participants"
		}
		out = fmt.Sprintf("%s (%d %s)", out, *item.BillingCount, unit)
	}
	return out
}

func parseStatus(raw string) (domain.Status, error) {
	switch status := domain.Status(strings.ToLower(strings.TrimSpace(raw))); status {
	case domain.StatusSubmitted, domain.StatusReviewed, domain.StatusQuoted, domain.StatusDeclined:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}

func normalizeEmail(raw string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(raw))
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", domain.ErrInvalidEmail
	}
	return address, nil
}
