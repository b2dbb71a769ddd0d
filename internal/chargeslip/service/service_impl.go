package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/document"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/internal/providers/pdf"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/internal/reference"
	referencedomain "github.com/smallbiznis/seqdesk/internal/reference/domain"
	"github.com/smallbiznis/seqdesk/pkg/db"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       domain.Repository
	Catalog    lineitem.Catalog
	Clients    clientdomain.Service
	Projects   projectdomain.Service
	Quotations quotationdomain.Service
	References *reference.Generator
	Profile    *config.DocumentProfileHolder
	PDF        pdf.Provider
	Store      storage.Store
	Audit      auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.Config
	repo       domain.Repository
	catalog    lineitem.Catalog
	clients    clientdomain.Service
	projects   projectdomain.Service
	quotations quotationdomain.Service
	references *reference.Generator
	profile    *config.DocumentProfileHolder
	pdf        pdf.Provider
	store      storage.Store
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("chargeslip.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Cfg,
		repo:       p.Repo,
		catalog:    p.Catalog,
		clients:    p.Clients,
		projects:   p.Projects,
		quotations: p.Quotations,
		references: p.References,
		profile:    p.Profile,
		pdf:        p.PDF,
		store:      p.Store,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

// CreateFromQuotation bills an approved quotation using the lines frozen on
// it, so the slip total always equals the quoted total.
func (s *Service) CreateFromQuotation(ctx context.Context, req domain.FromQuotationRequest) (domain.ChargeSlip, error) {
	q, err := s.quotations.Get(ctx, req.QuotationID)
	if err != nil {
		return domain.ChargeSlip{}, err
	}
	if !q.Status.Issued() {
		return domain.ChargeSlip{}, domain.ErrQuotationNotIssued
	}

	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = "Billed against quotation " + q.Reference
	}
	quotationID := q.ID
	slip := s.newSlip(ctx, q.ClientID, q.ProjectID, q.IsInternal, notes)
	slip.QuotationID = &quotationID
	if q.Currency != "" {
		slip.Currency = q.Currency
	}

	return s.issue(ctx, slip, q.Items())
}

func (s *Service) Create(ctx context.Context, req domain.CreateChargeSlipRequest) (domain.ChargeSlip, error) {
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clientdomain.ErrNotFound) || errors.Is(err, clientdomain.ErrInvalidID) {
			return domain.ChargeSlip{}, domain.ErrInvalidClient
		}
		return domain.ChargeSlip{}, err
	}

	var projectID *snowflake.ID
	if raw := strings.TrimSpace(req.ProjectID); raw != "" {
		project, err := s.projects.Get(ctx, raw)
		if err != nil || project.ClientID != client.ID {
			return domain.ChargeSlip{}, domain.ErrInvalidProject
		}
		projectID = &project.ID
	}

	items, err := lineitem.Build(ctx, s.catalog, req.Lines)
	if err != nil {
		return domain.ChargeSlip{}, err
	}

	isInternal := client.IsInternal
	if req.IsInternal != nil {
		isInternal = *req.IsInternal
	}
	slip := s.newSlip(ctx, client.ID, projectID, isInternal, strings.TrimSpace(req.Notes))
	return s.issue(ctx, slip, items)
}

func (s *Service) issue(ctx context.Context, slip domain.ChargeSlip, items []lineitem.Item) (domain.ChargeSlip, error) {
	summary := lineitem.Summarize(items, slip.IsInternal)
	if len(summary.Lines) == 0 {
		return domain.ChargeSlip{}, domain.ErrNoBillableLines
	}
	slip.Subtotal = summary.Totals.Subtotal
	slip.Discount = summary.Totals.Discount
	slip.Total = summary.Totals.Total

	slip.Lines = make([]domain.Line, len(items))
	for i, item := range items {
		slip.Lines[i] = domain.Line{
			ID:           s.genID.Generate(),
			ChargeSlipID: slip.ID,
			Position:     i + 1,
			Item:         item,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if slip.QuotationID != nil {
			if err := s.guardQuotation(ctx, tx, *slip.QuotationID); err != nil {
				return err
			}
		}
		ref, issuedAt, err := s.references.Next(ctx, tx, referencedomain.KindChargeSlip, s.profile.Get().ChargeSlipRefFormat)
		if err != nil {
			return err
		}
		slip.Reference = ref
		slip.IssuedAt = issuedAt
		if err := s.repo.Insert(ctx, tx, &slip); err != nil {
			return err
		}
		return s.repo.InsertLines(ctx, tx, slip.Lines)
	})
	if err != nil && slip.QuotationID != nil && db.IsDuplicateKeyErr(err) {
		if existing, ferr := s.repo.FindOpenByQuotation(ctx, s.db, *slip.QuotationID); ferr == nil && existing != nil {
			err = domain.ErrAlreadyBilled
		}
	}
	if errors.Is(err, domain.ErrAlreadyBilled) {
		return domain.ChargeSlip{}, err
	}
	if err != nil {
		s.log.Error("failed to issue charge slip", zap.String("client_id", slip.ClientID.String()), zap.Error(err))
		return domain.ChargeSlip{}, err
	}

	targetID := slip.ID.String()
	metadata := map[string]any{"reference": slip.Reference, "total": slip.Total.StringFixed(2)}
	if slip.QuotationID != nil {
		metadata["quotation_id"] = slip.QuotationID.String()
	}
	if err := s.audit.AuditLog(ctx, "", nil, "charge_slip.issue", "charge_slip", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit charge slip", zap.Error(err))
	}
	s.log.Info("charge slip issued", zap.String("reference", slip.Reference), zap.String("total", slip.Total.StringFixed(2)))
	return slip, nil
}

// guardQuotation serializes billing of one quotation and refuses a second
// open slip for it.
func (s *Service) guardQuotation(ctx context.Context, tx *gorm.DB, quotationID snowflake.ID) error {
	if err := s.repo.LockQuotation(ctx, tx, quotationID); err != nil {
		return err
	}
	existing, err := s.repo.FindOpenByQuotation(ctx, tx, quotationID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrAlreadyBilled
	}
	return nil
}

func (s *Service) Get(ctx context.Context, raw string) (domain.ChargeSlip, error) {
	return s.load(ctx, raw)
}

func (s *Service) List(ctx context.Context, req domain.ListChargeSlipRequest) (domain.ListChargeSlipResponse, error) {
	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListChargeSlipResponse{}, domain.ErrInvalidID
		}
		filter.ClientID = id.Int64()
	}
	if raw := strings.TrimSpace(req.QuotationID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListChargeSlipResponse{}, domain.ErrInvalidID
		}
		filter.QuotationID = id.Int64()
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		switch status := domain.Status(strings.ToLower(raw)); status {
		case domain.StatusIssued, domain.StatusPaid, domain.StatusVoid:
			filter.Status = status
		default:
			return domain.ListChargeSlipResponse{}, domain.ErrInvalidStatus
		}
	}

	pageSize := pagination.PageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize})
	if err != nil {
		return domain.ListChargeSlipResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.ChargeSlip) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	slips := make([]domain.ChargeSlip, 0, len(items))
	for _, item := range items {
		if item != nil {
			slips = append(slips, *item)
		}
	}
	return domain.ListChargeSlipResponse{PageInfo: *pageInfo, ChargeSlips: slips}, nil
}

func (s *Service) MarkPaid(ctx context.Context, raw string, req domain.MarkPaidRequest) (domain.ChargeSlip, error) {
	slip, err := s.load(ctx, raw)
	if err != nil {
		return domain.ChargeSlip{}, err
	}
	if slip.Status != domain.StatusIssued {
		return domain.ChargeSlip{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	slip.Status = domain.StatusPaid
	slip.PaymentReference = strings.TrimSpace(req.PaymentReference)
	slip.PaidAt = &now
	slip.UpdatedAt = now
	if err := s.transition(ctx, &slip, domain.StatusIssued, "charge_slip.paid", map[string]any{"payment_reference": slip.PaymentReference}); err != nil {
		return domain.ChargeSlip{}, err
	}
	return slip, nil
}

func (s *Service) Void(ctx context.Context, raw string, req domain.VoidRequest) (domain.ChargeSlip, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.ChargeSlip{}, domain.ErrVoidReasonRequired
	}
	slip, err := s.load(ctx, raw)
	if err != nil {
		return domain.ChargeSlip{}, err
	}
	if slip.Status != domain.StatusIssued {
		return domain.ChargeSlip{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	slip.Status = domain.StatusVoid
	slip.VoidReason = reason
	slip.VoidedAt = &now
	slip.UpdatedAt = now
	if err := s.transition(ctx, &slip, domain.StatusIssued, "charge_slip.void", map[string]any{"reason": reason}); err != nil {
		return domain.ChargeSlip{}, err
	}
	return slip, nil
}

func (s *Service) RenderPDF(ctx context.Context, raw string) (domain.PDFResponse, error) {
	slip, err := s.load(ctx, raw)
	if err != nil {
		return domain.PDFResponse{}, err
	}

	if slip.PDFObjectKey == "" {
		view, err := s.view(ctx, slip)
		if err != nil {
			return domain.PDFResponse{}, err
		}
		start := time.Now()
		data, err := s.pdf.GenerateChargeSlip(ctx, view)
		if err != nil {
			return domain.PDFResponse{}, err
		}
		s.metrics.ObserveDocumentRendered("charge_slip", "pdf", time.Since(start).Seconds())

		key := "charge-slips/" + slug.Make(slip.Reference) + "-" + slip.ID.String() + ".pdf"
		if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
			return domain.PDFResponse{}, err
		}
		slip.PDFObjectKey = key
		slip.UpdatedAt = s.clock.Now()
		if _, err := s.repo.Update(ctx, s.db, &slip, slip.Status); err != nil {
			return domain.PDFResponse{}, err
		}
	}

	url, err := s.store.PresignedURL(ctx, slip.PDFObjectKey, s.cfg.Storage.URLTTL)
	if err != nil {
		return domain.PDFResponse{}, err
	}
	return domain.PDFResponse{ObjectKey: slip.PDFObjectKey, URL: url}, nil
}

func (s *Service) transition(ctx context.Context, slip *domain.ChargeSlip, from domain.Status, action string, metadata map[string]any) error {
	ok, err := s.repo.Update(ctx, s.db, slip, from)
	if err != nil {
		s.log.Error("failed to update charge slip", zap.String("charge_slip_id", slip.ID.String()), zap.Error(err))
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	metadata["reference"] = slip.Reference
	targetID := slip.ID.String()
	if err := s.audit.AuditLog(ctx, "", nil, action, "charge_slip", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit charge slip", zap.String("action", action), zap.Error(err))
	}
	return nil
}

func (s *Service) view(ctx context.Context, slip domain.ChargeSlip) (document.View, error) {
	client, err := s.clients.GetByID(ctx, slip.ClientID.String())
	if err != nil {
		return document.View{}, err
	}
	projectTitle := ""
	if slip.ProjectID != nil {
		if project, err := s.projects.Get(ctx, slip.ProjectID.String()); err == nil {
			projectTitle = project.Title
		}
	}

	profile := s.profile.Get()
	if slip.Currency != "" {
		profile.Currency = slip.Currency
	}
	return document.BuildView(lineitem.Summarize(slip.Items(), slip.IsInternal), document.Meta{
		Kind:      document.KindChargeSlip,
		Reference: slip.Reference,
		Status:    string(slip.Status),
		IssuedAt:  slip.IssuedAt,
		Client: document.Party{
			Name:        client.Name,
			Institution: client.Institution,
			Department:  client.Department,
			Email:       client.Email,
			Phone:       client.Phone,
		},
		ProjectTitle: projectTitle,
		Notes:        slip.Notes,
		Profile:      profile,
	}), nil
}

func (s *Service) load(ctx context.Context, raw string) (domain.ChargeSlip, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.ChargeSlip{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ChargeSlip{}, err
	}
	if item == nil {
		return domain.ChargeSlip{}, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, item.ID)
	if err != nil {
		return domain.ChargeSlip{}, err
	}
	item.Lines = lines
	return *item, nil
}

func (s *Service) newSlip(ctx context.Context, clientID snowflake.ID, projectID *snowflake.ID, isInternal bool, notes string) domain.ChargeSlip {
	now := s.clock.Now()
	slip := domain.ChargeSlip{
		ID:         s.genID.Generate(),
		ClientID:   clientID,
		ProjectID:  projectID,
		IsInternal: isInternal,
		Status:     domain.StatusIssued,
		Currency:   s.profile.Get().Currency,
		Notes:      notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, id := obscontext.ActorFromContext(ctx); id != "" {
		slip.CreatedBy = &id
	}
	return slip
}
