package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/seqdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/seqdesk/internal/audit/service"
	"github.com/smallbiznis/seqdesk/internal/catalog/cache"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/seqdesk/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/seqdesk/internal/catalog/service"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	clientrepo "github.com/smallbiznis/seqdesk/internal/client/repository"
	clientservice "github.com/smallbiznis/seqdesk/internal/client/service"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/inquiry/repository"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	projectrepo "github.com/smallbiznis/seqdesk/internal/project/repository"
	projectservice "github.com/smallbiznis/seqdesk/internal/project/service"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	"github.com/smallbiznis/seqdesk/internal/providers/pdf"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	quotationrepo "github.com/smallbiznis/seqdesk/internal/quotation/repository"
	quotationservice "github.com/smallbiznis/seqdesk/internal/quotation/service"
	"github.com/smallbiznis/seqdesk/internal/reference"
	referencedomain "github.com/smallbiznis/seqdesk/internal/reference/domain"
	"github.com/smallbiznis/seqdesk/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentEmail struct {
	to       []string
	template string
	data     map[string]any
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	f.sent = append(f.sent, sentEmail{to: to, template: templateName, data: data})
	return f.err
}

// staleRepo serves a fixed snapshot from FindByID, as a second admin would
// see it while a first convert is in flight.
type staleRepo struct {
	domain.Repository
	snapshot *domain.Inquiry
}

func (r *staleRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Inquiry, error) {
	if r.snapshot != nil && r.snapshot.ID == id {
		item := *r.snapshot
		return &item, nil
	}
	return r.Repository.FindByID(ctx, db, id)
}

type harness struct {
	svc     domain.Service
	repo    *staleRepo
	clock   *clock.FakeClock
	catalog catalogdomain.Service
	clients clientdomain.Service
	quotes  quotationdomain.Service
	email   *fakeEmail
}

func setup(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&catalogdomain.ServiceDefinition{},
		&clientdomain.Client{},
		&projectdomain.Project{},
		&projectdomain.TeamMember{},
		&referencedomain.Sequence{},
		&auditdomain.AuditLog{},
		&quotationdomain.Quotation{},
		&quotationdomain.Line{},
		&domain.Inquiry{},
	))

	node, _ := snowflake.NewNode(3)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	profile := config.NewStaticDocumentProfileHolder(config.DefaultDocumentProfile())

	catalog := catalogservice.New(catalogservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: catalogrepo.Provide(), Cache: cache.NewNoop()})
	clients := clientservice.New(clientservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: clientrepo.Provide()})
	projects := projectservice.New(projectservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: projectrepo.Provide(), Clients: clients})
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide()})
	mail := &fakeEmail{}

	quotes := quotationservice.New(quotationservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       quotationrepo.Provide(),
		Catalog:    catalog,
		Clients:    clients,
		Projects:   projects,
		References: reference.NewGenerator(reference.Params{Repo: reference.NewRepository(), Clock: fake, Log: log}),
		Profile:    profile,
		Renderer:   render.NewSummaryRenderer(),
		PDF:        pdf.New(),
		Store:      storage.NewMemory(),
		Email:      &fakeEmail{},
		Audit:      audit,
	})

	repo := &staleRepo{Repository: repository.Provide()}
	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       repo,
		Catalog:    catalog,
		Clients:    clients,
		Quotations: quotes,
		Profile:    profile,
		Email:      mail,
		Audit:      audit,
	})
	return &harness{svc: svc, repo: repo, clock: fake, catalog: catalog, clients: clients, quotes: quotes, email: mail}
}

func (h *harness) seedServices(t *testing.T) (wgs, qc catalogdomain.ServiceDefinition) {
	t.Helper()
	ctx := context.Background()
	minIncluded := int64(9)
	rate := decimal.NewFromInt(50)
	var err error
	wgs, err = h.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:               "Whole genome analysis",
		Category:           "Bioinformatics",
		ServiceType:        "Bioinformatics",
		Price:              decimal.NewFromInt(1000),
		TierMinIncluded:    &minIncluded,
		TierAdditionalRate: &rate,
	})
	require.NoError(t, err)
	qc, err = h.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:     "Quality control",
		Category: "Sequencing",
		Price:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	return wgs, qc
}

func submitRequest(wgs, qc catalogdomain.ServiceDefinition) domain.SubmitRequest {
	samples := lineitem.Quantity(12)
	return domain.SubmitRequest{
		ContactName:    "Dr. Ana Reyes",
		Email:          " Ana.Reyes@Uni.edu ",
		Institution:    "State University",
		ClaimsInternal: true,
		ProjectTitle:   "Rice blast resistance",
		Summary:        "Twelve isolates for WGS",
		Services: []lineitem.Input{
			{ServiceID: wgs.ID.String(), Quantity: 1, BillingCount: &samples},
			{ServiceID: qc.ID.String(), Quantity: 2},
		},
	}
}

func TestSubmitAndTrack(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	res, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	assert.Len(t, res.TrackingCode, 26)
	assert.Equal(t, domain.StatusSubmitted, res.Status)

	require.Len(t, h.email.sent, 1)
	assert.Equal(t, []string{"ana.reyes@uni.edu"}, h.email.sent[0].to)
	assert.Equal(t, email.TemplateInquiryReceived, h.email.sent[0].template)
	assert.Equal(t, res.TrackingCode, h.email.sent[0].data["tracking_code"])
	assert.Equal(t, []string{"Whole genome analysis (12 samples)", "Quality control x2"}, h.email.sent[0].data["services"])

	view, err := h.svc.Track(ctx, res.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, view.Status)

	_, err = h.svc.Track(ctx, "not-a-code")
	assert.ErrorIs(t, err, domain.ErrInvalidTrackingCode)

	_, err = h.svc.Track(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmitValidation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	req := submitRequest(wgs, qc)
	req.ContactName = "  "
	_, err := h.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidContact)

	req = submitRequest(wgs, qc)
	req.Email = "not an email"
	_, err = h.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	req = submitRequest(wgs, qc)
	req.Services = nil
	_, err = h.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, domain.ErrNoServices)

	req = submitRequest(wgs, qc)
	req.Services = []lineitem.Input{{ServiceID: "42", Quantity: 1}}
	_, err = h.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, lineitem.ErrUnknownService)

	assert.Empty(t, h.email.sent)
}

func TestSubmitSurvivesEmailFailure(t *testing.T) {
	h := setup(t)
	wgs, qc := h.seedServices(t)
	h.email.err = errors.New("smtp down")

	res, err := h.svc.Submit(context.Background(), submitRequest(wgs, qc))
	require.NoError(t, err)
	assert.NotEmpty(t, res.TrackingCode)
}

func TestReviewTransitions(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	res, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	list, err := h.svc.List(ctx, domain.ListInquiryRequest{Status: "submitted"})
	require.NoError(t, err)
	require.Len(t, list.Inquiries, 1)
	id := list.Inquiries[0].ID.String()

	_, err = h.svc.Review(ctx, id, domain.ReviewRequest{Status: "quoted"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	reviewed, err := h.svc.Review(ctx, id, domain.ReviewRequest{Status: "reviewed", Notes: "Needs sample sheet"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReviewed, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)

	_, err = h.svc.Review(ctx, id, domain.ReviewRequest{Status: "reviewed"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	declined, err := h.svc.Review(ctx, id, domain.ReviewRequest{Status: "declined"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.Equal(t, "Needs sample sheet", declined.ReviewNotes)

	view, err := h.svc.Track(ctx, res.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, view.Status)

	_, err = h.svc.Convert(ctx, id, domain.ConvertRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConvertCreatesDraftQuotation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	_, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	list, err := h.svc.List(ctx, domain.ListInquiryRequest{})
	require.NoError(t, err)
	require.Len(t, list.Inquiries, 1)
	id := list.Inquiries[0].ID.String()

	res, err := h.svc.Convert(ctx, id, domain.ConvertRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuoted, res.Inquiry.Status)
	require.NotNil(t, res.Inquiry.QuotationID)
	assert.Equal(t, res.Quotation.ID, *res.Inquiry.QuotationID)

	q := res.Quotation
	assert.Equal(t, quotationdomain.StatusDraft, q.Status)
	assert.Equal(t, "Q-202604-0001", q.Reference)
	assert.False(t, q.IsInternal)
	assert.Equal(t, "2150", q.Total.String())
	require.NotNil(t, q.InquiryID)
	assert.Equal(t, list.Inquiries[0].ID, *q.InquiryID)
	assert.Equal(t, "Project: Rice blast resistance", q.Notes)

	client, err := h.clients.GetByID(ctx, q.ClientID.String())
	require.NoError(t, err)
	assert.Equal(t, "ana.reyes@uni.edu", client.Email)
	assert.False(t, client.IsInternal)
	assert.Equal(t, true, client.Metadata[clientdomain.MetadataClaimsInternal])

	_, err = h.svc.Convert(ctx, id, domain.ConvertRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConvertAdminConfirmsInternalClaim(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	_, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	list, err := h.svc.List(ctx, domain.ListInquiryRequest{Email: "ana.reyes@uni.edu"})
	require.NoError(t, err)
	require.Len(t, list.Inquiries, 1)

	internal := true
	res, err := h.svc.Convert(ctx, list.Inquiries[0].ID.String(), domain.ConvertRequest{IsInternal: &internal})
	require.NoError(t, err)
	assert.True(t, res.Quotation.IsInternal)
	assert.Equal(t, "1892", res.Quotation.Total.String())

	client, err := h.clients.GetByID(ctx, res.Quotation.ClientID.String())
	require.NoError(t, err)
	assert.False(t, client.IsInternal)
}

func TestConvertRaceLeavesSingleQuotation(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	_, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	list, err := h.svc.List(ctx, domain.ListInquiryRequest{})
	require.NoError(t, err)
	require.Len(t, list.Inquiries, 1)
	stale := list.Inquiries[0]
	id := stale.ID.String()

	_, err = h.svc.Convert(ctx, id, domain.ConvertRequest{})
	require.NoError(t, err)

	h.repo.snapshot = &stale
	_, err = h.svc.Convert(ctx, id, domain.ConvertRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	h.repo.snapshot = nil

	quotes, err := h.quotes.List(ctx, quotationdomain.ListQuotationRequest{})
	require.NoError(t, err)
	assert.Len(t, quotes.Quotations, 1)

	view, err := h.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQuoted, view.Status)
	require.NotNil(t, view.QuotationID)
	assert.Equal(t, quotes.Quotations[0].ID, *view.QuotationID)
}

func TestListPendingOlderThan(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc := h.seedServices(t)

	_, err := h.svc.Submit(ctx, submitRequest(wgs, qc))
	require.NoError(t, err)
	h.clock.Advance(72 * time.Hour)

	second := submitRequest(wgs, qc)
	second.Email = "lab@acme.bio"
	_, err = h.svc.Submit(ctx, second)
	require.NoError(t, err)

	pending, err := h.svc.ListPendingOlderThan(ctx, 48*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ana.reyes@uni.edu", pending[0].Email)
}
