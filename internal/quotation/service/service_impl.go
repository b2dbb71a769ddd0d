package service

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/document"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	"github.com/smallbiznis/seqdesk/internal/providers/pdf"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	"github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/internal/reference"
	referencedomain "github.com/smallbiznis/seqdesk/internal/reference/domain"
	"github.com/smallbiznis/seqdesk/internal/render"
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
	Cfg        config.Config
	Repo       domain.Repository
	Catalog    lineitem.Catalog
	Clients    clientdomain.Service
	Projects   projectdomain.Service
	References *reference.Generator
	Profile    *config.DocumentProfileHolder
	Renderer   *render.SummaryRenderer
	PDF        pdf.Provider
	Store      storage.Store
	Email      email.Provider
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
	references *reference.Generator
	profile    *config.DocumentProfileHolder
	renderer   *render.SummaryRenderer
	pdf        pdf.Provider
	store      storage.Store
	email      email.Provider
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quotation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Cfg,
		repo:       p.Repo,
		catalog:    p.Catalog,
		clients:    p.Clients,
		projects:   p.Projects,
		references: p.References,
		profile:    p.Profile,
		renderer:   p.Renderer,
		pdf:        p.PDF,
		store:      p.Store,
		email:      p.Email,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.PreviewResponse, error) {
	var items []lineitem.Item
	if len(req.Lines) > 0 {
		built, err := lineitem.Build(ctx, s.catalog, req.Lines)
		if err != nil {
			return domain.PreviewResponse{}, err
		}
		items = built
	}

	summary := lineitem.Summarize(items, req.IsInternal)
	view := document.BuildView(summary, document.Meta{
		Kind:    document.KindQuotation,
		Profile: s.profile.Get(),
	})
	html, err := s.renderer.RenderSummaryHTML(view)
	if err != nil {
		return domain.PreviewResponse{}, err
	}
	return domain.PreviewResponse{Summary: summary, HTML: template.HTML(html)}, nil
}

func (s *Service) CreateDraft(ctx context.Context, req domain.CreateQuotationRequest) (domain.Quotation, error) {
	client, err := s.clients.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clientdomain.ErrNotFound) || errors.Is(err, clientdomain.ErrInvalidID) {
			return domain.Quotation{}, domain.ErrInvalidClient
		}
		return domain.Quotation{}, err
	}

	var projectID *snowflake.ID
	if raw := strings.TrimSpace(req.ProjectID); raw != "" {
		project, err := s.projects.Get(ctx, raw)
		if err != nil || project.ClientID != client.ID {
			return domain.Quotation{}, domain.ErrInvalidProject
		}
		projectID = &project.ID
	}

	var inquiryID *snowflake.ID
	if raw := strings.TrimSpace(req.InquiryID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.Quotation{}, domain.ErrInvalidID
		}
		inquiryID = &id
	}

	items, err := lineitem.Build(ctx, s.catalog, req.Lines)
	if err != nil {
		return domain.Quotation{}, err
	}

	isInternal := client.IsInternal
	if req.IsInternal != nil {
		isInternal = *req.IsInternal
	}
	summary := lineitem.Summarize(items, isInternal)

	profile := s.profile.Get()
	now := s.clock.Now()
	q := domain.Quotation{
		ID:         s.genID.Generate(),
		ClientID:   client.ID,
		ProjectID:  projectID,
		InquiryID:  inquiryID,
		IsInternal: isInternal,
		Status:     domain.StatusDraft,
		Currency:   profile.Currency,
		CC:         normalizeCC(req.CC),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedBy:  actorID(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyTotals(&q, summary.Totals)
	q.Lines = s.newLines(q.ID, items)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, _, err := s.references.Next(ctx, tx, referencedomain.KindQuotation, profile.QuotationRefFormat)
		if err != nil {
			return err
		}
		q.Reference = ref
		if err := s.repo.Insert(ctx, tx, &q); err != nil {
			return err
		}
		return s.repo.ReplaceLines(ctx, tx, q.ID, q.Lines)
	})
	if err != nil {
		s.log.Error("failed to create quotation", zap.String("client_id", client.ID.String()), zap.Error(err))
		return domain.Quotation{}, err
	}

	s.metrics.RecordQuotationEvent("created")
	s.log.Info("quotation drafted",
		zap.String("quotation_id", q.ID.String()),
		zap.String("reference", q.Reference),
		zap.String("total", q.Total.StringFixed(2)),
	)
	return q, nil
}

func (s *Service) ReplaceLines(ctx context.Context, raw string, req domain.ReplaceLinesRequest) (domain.Quotation, error) {
	q, err := s.load(ctx, raw, false)
	if err != nil {
		return domain.Quotation{}, err
	}
	if q.Status != domain.StatusDraft {
		return domain.Quotation{}, domain.ErrNotEditable
	}

	items, err := lineitem.Build(ctx, s.catalog, req.Lines)
	if err != nil {
		return domain.Quotation{}, err
	}
	summary := lineitem.Summarize(items, q.IsInternal)

	applyTotals(&q, summary.Totals)
	if req.Notes != nil {
		q.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.CC != nil {
		q.CC = normalizeCC(req.CC)
	}
	q.PDFObjectKey = ""
	q.UpdatedAt = s.clock.Now()
	q.Lines = s.newLines(q.ID, items)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Update(ctx, tx, &q, domain.StatusDraft)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotEditable
		}
		return s.repo.ReplaceLines(ctx, tx, q.ID, q.Lines)
	})
	if err != nil {
		return domain.Quotation{}, err
	}
	return q, nil
}

func (s *Service) Get(ctx context.Context, raw string) (domain.Quotation, error) {
	return s.load(ctx, raw, true)
}

func (s *Service) List(ctx context.Context, req domain.ListQuotationRequest) (domain.ListQuotationResponse, error) {
	filter := domain.ListFilter{}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListQuotationResponse{}, domain.ErrInvalidID
		}
		filter.ClientID = id.Int64()
	}
	if raw := strings.TrimSpace(req.ProjectID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListQuotationResponse{}, domain.ErrInvalidID
		}
		filter.ProjectID = id.Int64()
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return domain.ListQuotationResponse{}, err
		}
		filter.Status = status
	}

	pageSize := pagination.PageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize})
	if err != nil {
		return domain.ListQuotationResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(q *domain.Quotation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        q.ID.String(),
			CreatedAt: q.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	quotations := make([]domain.Quotation, 0, len(items))
	for _, item := range items {
		if item != nil {
			quotations = append(quotations, *item)
		}
	}
	return domain.ListQuotationResponse{PageInfo: *pageInfo, Quotations: quotations}, nil
}

func (s *Service) Submit(ctx context.Context, raw string) (domain.Quotation, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return domain.Quotation{}, err
	}
	if q.Status != domain.StatusDraft {
		return domain.Quotation{}, domain.ErrInvalidTransition
	}
	if len(lineitem.Summarize(q.Items(), q.IsInternal).Lines) == 0 {
		return domain.Quotation{}, domain.ErrNoBillableLines
	}

	now := s.clock.Now()
	q.Status = domain.StatusPendingApproval
	q.SubmittedAt = &now
	q.UpdatedAt = now
	if err := s.transition(ctx, &q, domain.StatusDraft, "quotation.submit", nil); err != nil {
		return domain.Quotation{}, err
	}
	return q, nil
}

func (s *Service) Approve(ctx context.Context, raw string, req domain.DecisionRequest) (domain.Quotation, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return domain.Quotation{}, err
	}
	if q.Status != domain.StatusPendingApproval {
		return domain.Quotation{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	validUntil := now.AddDate(0, 0, s.profile.Get().QuotationValidDays)
	q.Status = domain.StatusApproved
	q.ValidUntil = &validUntil
	q.DecidedAt = &now
	q.DecidedBy = actorID(ctx)
	q.ReviewNotes = strings.TrimSpace(req.Notes)
	q.PDFObjectKey = ""
	q.UpdatedAt = now
	if err := s.transition(ctx, &q, domain.StatusPendingApproval, "quotation.approve", map[string]any{"notes": q.ReviewNotes}); err != nil {
		return domain.Quotation{}, err
	}
	return q, nil
}

func (s *Service) Reject(ctx context.Context, raw string, req domain.DecisionRequest) (domain.Quotation, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return domain.Quotation{}, err
	}
	if q.Status != domain.StatusPendingApproval {
		return domain.Quotation{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	q.Status = domain.StatusRejected
	q.DecidedAt = &now
	q.DecidedBy = actorID(ctx)
	q.ReviewNotes = strings.TrimSpace(req.Notes)
	q.UpdatedAt = now
	if err := s.transition(ctx, &q, domain.StatusPendingApproval, "quotation.reject", map[string]any{"notes": q.ReviewNotes}); err != nil {
		return domain.Quotation{}, err
	}
	return q, nil
}

func (s *Service) Summary(ctx context.Context, raw string) (pricing.Summary, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return pricing.Summary{}, err
	}
	return lineitem.Summarize(q.Items(), q.IsInternal), nil
}

func (s *Service) RenderSummary(ctx context.Context, raw string) (template.HTML, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return "", err
	}
	view, err := s.view(ctx, q)
	if err != nil {
		return "", err
	}

	start := time.Now()
	html, err := s.renderer.RenderSummaryHTML(view)
	if err != nil {
		return "", err
	}
	s.metrics.ObserveDocumentRendered("quotation", "html", time.Since(start).Seconds())
	return template.HTML(html), nil
}

func (s *Service) RenderPDF(ctx context.Context, raw string) (domain.PDFResponse, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return domain.PDFResponse{}, err
	}
	key, err := s.storePDF(ctx, &q)
	if err != nil {
		return domain.PDFResponse{}, err
	}
	url, err := s.store.PresignedURL(ctx, key, s.cfg.Storage.URLTTL)
	if err != nil {
		return domain.PDFResponse{}, err
	}
	return domain.PDFResponse{ObjectKey: key, URL: url}, nil
}

func (s *Service) Send(ctx context.Context, raw string) (domain.Quotation, error) {
	q, err := s.load(ctx, raw, true)
	if err != nil {
		return domain.Quotation{}, err
	}
	if !q.Status.Issued() {
		return domain.Quotation{}, domain.ErrInvalidTransition
	}

	client, err := s.clients.GetByID(ctx, q.ClientID.String())
	if err != nil {
		return domain.Quotation{}, err
	}
	if client.Email == "" {
		return domain.Quotation{}, domain.ErrNoRecipients
	}
	recipients := append([]string{client.Email}, q.CC...)

	view, err := s.view(ctx, q)
	if err != nil {
		return domain.Quotation{}, err
	}
	summaryHTML, err := s.renderer.RenderSummaryHTML(view)
	if err != nil {
		return domain.Quotation{}, err
	}

	key, err := s.storePDF(ctx, &q)
	if err != nil {
		return domain.Quotation{}, err
	}
	url, err := s.store.PresignedURL(ctx, key, s.cfg.Storage.URLTTL)
	if err != nil {
		return domain.Quotation{}, err
	}

	err = s.email.SendTemplate(ctx, recipients, email.TemplateQuotationSent, map[string]any{
		"name":         client.Name,
		"reference":    q.Reference,
		"center_name":  view.Center.Name,
		"currency":     view.Currency,
		"total":        view.Total,
		"valid_until":  view.ValidUntil,
		"pdf_url":      url,
		"summary_html": template.HTML(summaryHTML),
	})
	if err != nil {
		s.log.Error("failed to send quotation", zap.String("reference", q.Reference), zap.Error(err))
		return domain.Quotation{}, err
	}

	previous := q.Status
	now := s.clock.Now()
	q.Status = domain.StatusSent
	q.SentAt = &now
	q.UpdatedAt = now
	if err := s.transition(ctx, &q, previous, "quotation.send", map[string]any{"recipients": recipients}); err != nil {
		return domain.Quotation{}, err
	}
	return q, nil
}

// ExpireDue moves issued quotations past their validity date to expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	items, err := s.repo.ListExpirable(ctx, s.db, now, s.cfg.Scheduler.ExpiryBatchLimit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		q := *item
		previous := q.Status
		q.Status = domain.StatusExpired
		q.UpdatedAt = now
		err := s.transition(ctx, &q, previous, "quotation.expire", nil)
		if errors.Is(err, domain.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// transition persists a status change guarded on the previous status and
// records the audit entry and metric for it.
func (s *Service) transition(ctx context.Context, q *domain.Quotation, from domain.Status, action string, metadata map[string]any) error {
	ok, err := s.repo.Update(ctx, s.db, q, from)
	if err != nil {
		s.log.Error("failed to update quotation",
			zap.String("quotation_id", q.ID.String()),
			zap.String("status", string(q.Status)),
			zap.Error(err),
		)
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["reference"] = q.Reference
	metadata["from"] = string(from)
	metadata["to"] = string(q.Status)
	targetID := q.ID.String()
	if err := s.audit.AuditLog(ctx, "", nil, action, "quotation", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit quotation transition", zap.String("action", action), zap.Error(err))
	}
	s.metrics.RecordQuotationEvent(string(q.Status))
	return nil
}

func (s *Service) storePDF(ctx context.Context, q *domain.Quotation) (string, error) {
	if q.PDFObjectKey != "" {
		if _, err := s.store.PresignedURL(ctx, q.PDFObjectKey, time.Minute); err == nil {
			return q.PDFObjectKey, nil
		}
	}

	view, err := s.view(ctx, *q)
	if err != nil {
		return "", err
	}

	start := time.Now()
	data, err := s.pdf.GenerateQuotation(ctx, view)
	if err != nil {
		return "", err
	}
	s.metrics.ObserveDocumentRendered("quotation", "pdf", time.Since(start).Seconds())

	key := "quotations/" + slug.Make(q.Reference) + "-" + q.ID.String() + ".pdf"
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return "", err
	}

	q.PDFObjectKey = key
	q.UpdatedAt = s.clock.Now()
	ok, err := s.repo.Update(ctx, s.db, q, q.Status)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidTransition
	}
	return key, nil
}

func (s *Service) view(ctx context.Context, q domain.Quotation) (document.View, error) {
	client, err := s.clients.GetByID(ctx, q.ClientID.String())
	if err != nil {
		return document.View{}, err
	}
	projectTitle := ""
	if q.ProjectID != nil {
		if project, err := s.projects.Get(ctx, q.ProjectID.String()); err == nil {
			projectTitle = project.Title
		}
	}

	profile := s.profile.Get()
	if q.Currency != "" {
		profile.Currency = q.Currency
	}
	summary := lineitem.Summarize(q.Items(), q.IsInternal)
	return document.BuildView(summary, document.Meta{
		Kind:       document.KindQuotation,
		Reference:  q.Reference,
		Status:     string(q.Status),
		IssuedAt:   issuedAt(q),
		ValidUntil: q.ValidUntil,
		Client: document.Party{
			Name:        client.Name,
			Institution: client.Institution,
			Department:  client.Department,
			Email:       client.Email,
			Phone:       client.Phone,
		},
		ProjectTitle: projectTitle,
		Notes:        q.Notes,
		Profile:      profile,
	}), nil
}

func (s *Service) load(ctx context.Context, raw string, withLines bool) (domain.Quotation, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.Quotation{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	if item == nil {
		return domain.Quotation{}, domain.ErrNotFound
	}
	if withLines {
		lines, err := s.repo.ListLines(ctx, s.db, item.ID)
		if err != nil {
			return domain.Quotation{}, err
		}
		item.Lines = lines
	}
	return *item, nil
}

func (s *Service) newLines(quotationID snowflake.ID, items []lineitem.Item) []domain.Line {
	lines := make([]domain.Line, len(items))
	for i, item := range items {
		lines[i] = domain.Line{
			ID:          s.genID.Generate(),
			QuotationID: quotationID,
			Position:    i + 1,
			Item:        item,
		}
	}
	return lines
}

func applyTotals(q *domain.Quotation, totals pricing.Totals) {
	q.IsInternal = totals.Internal
	q.Subtotal = totals.Subtotal
	q.Discount = totals.Discount
	q.Total = totals.Total
}

func issuedAt(q domain.Quotation) time.Time {
	if q.DecidedAt != nil && q.Status != domain.StatusRejected {
		return *q.DecidedAt
	}
	return q.CreatedAt
}

func normalizeCC(raw []string) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	seen := map[string]bool{}
	for _, addr := range raw {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

func actorID(ctx context.Context) *string {
	_, id := obscontext.ActorFromContext(ctx)
	if id == "" {
		return nil
	}
	return &id
}

func parseStatus(raw string) (domain.Status, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.StatusDraft, domain.StatusPendingApproval, domain.StatusApproved,
		domain.StatusRejected, domain.StatusSent, domain.StatusExpired:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}
