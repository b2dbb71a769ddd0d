package service

import (
	"context"
	"strings"
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
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	projectrepo "github.com/smallbiznis/seqdesk/internal/project/repository"
	projectservice "github.com/smallbiznis/seqdesk/internal/project/service"
	"github.com/smallbiznis/seqdesk/internal/providers/pdf"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	"github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/internal/quotation/repository"
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
}

func (f *fakeEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	f.sent = append(f.sent, sentEmail{to: to, template: templateName, data: data})
	return nil
}

type harness struct {
	svc      domain.Service
	db       *gorm.DB
	clock    *clock.FakeClock
	catalog  catalogdomain.Service
	clients  clientdomain.Service
	projects projectdomain.Service
	store    *storage.MemoryStore
	email    *fakeEmail
	audit    auditdomain.Service
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
		&domain.Quotation{},
		&domain.Line{},
	))

	node, _ := snowflake.NewNode(1)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	catalog := catalogservice.New(catalogservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: catalogrepo.Provide(), Cache: cache.NewNoop()})
	clients := clientservice.New(clientservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: clientrepo.Provide()})
	projects := projectservice.New(projectservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: projectrepo.Provide(), Clients: clients})
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide()})
	store := storage.NewMemory()
	mail := &fakeEmail{}

	cfg := config.Config{}
	cfg.Storage.URLTTL = time.Hour
	cfg.Scheduler.ExpiryBatchLimit = 50

	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Cfg:        cfg,
		Repo:       repository.Provide(),
		Catalog:    catalog,
		Clients:    clients,
		Projects:   projects,
		References: reference.NewGenerator(reference.Params{Repo: reference.NewRepository(), Clock: fake, Log: log}),
		Profile:    config.NewStaticDocumentProfileHolder(config.DefaultDocumentProfile()),
		Renderer:   render.NewSummaryRenderer(),
		PDF:        pdf.New(),
		Store:      store,
		Email:      mail,
		Audit:      audit,
	})

	return &harness{svc: svc, db: db, clock: fake, catalog: catalog, clients: clients, projects: projects, store: store, email: mail, audit: audit}
}

func i64(v int64) *int64 { return &v }

func decp(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func qty(v int64) *lineitem.Quantity {
	q := lineitem.Quantity(v)
	return &q
}

// seed creates the two services and an internal client used by most tests.
func (h *harness) seed(t *testing.T, internal bool) (wgs, qc catalogdomain.ServiceDefinition, client clientdomain.Client) {
	t.Helper()
	ctx := context.Background()
	var err error
	wgs, err = h.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:               "Whole genome analysis",
		Category:           "Bioinformatics",
		ServiceType:        "Bioinformatics",
		Price:              decimal.NewFromInt(1000),
		TierMinIncluded:    i64(9),
		TierAdditionalRate: decp(50),
	})
	require.NoError(t, err)
	qc, err = h.catalog.Create(ctx, catalogdomain.CreateRequest{
		Name:     "Quality control",
		Category: "Sequencing",
		Unit:     "sample",
		Price:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	client, err = h.clients.Create(ctx, clientdomain.CreateClientRequest{Name: "Dr. Reyes", Email: "reyes@uni.edu", IsInternal: internal})
	require.NoError(t, err)
	return wgs, qc, client
}

func standardLines(wgs, qc catalogdomain.ServiceDefinition) []lineitem.Input {
	return []lineitem.Input{
		{ServiceID: wgs.ID.String(), Quantity: 1, BillingCount: qty(12)},
		{ServiceID: qc.ID.String(), Quantity: 2},
		{ServiceID: qc.ID.String(), Quantity: 0},
	}
}

func TestPreviewMatchesPersistedTotals(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc, client := h.seed(t, true)

	preview, err := h.svc.Preview(ctx, domain.PreviewRequest{Lines: standardLines(wgs, qc), IsInternal: true})
	require.NoError(t, err)
	assert.Equal(t, "2150", preview.Summary.Totals.Subtotal.String())
	assert.Equal(t, "258", preview.Summary.Totals.Discount.String())
	assert.Equal(t, "1892", preview.Summary.Totals.Total.String())
	assert.Contains(t, string(preview.HTML), "PHP 1,892.00")

	q, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: client.ID.String(), Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	assert.Equal(t, "Q-202604-0001", q.Reference)
	assert.True(t, q.IsInternal)
	assert.True(t, preview.Summary.Totals.Total.Equal(q.Total))
	assert.True(t, preview.Summary.Totals.Discount.Equal(q.Discount))
	require.Len(t, q.Lines, 3)
	assert.Equal(t, "1150", q.Lines[0].UnitAmount.String())
	assert.True(t, q.Lines[2].Amount.IsZero())

	got, err := h.svc.Get(ctx, q.ID.String())
	require.NoError(t, err)
	require.Len(t, got.Lines, 3)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1892)))
	assert.Equal(t, int64(12), *got.Lines[0].BillingCount)
}

func TestPreviewEmptyAndUnknownService(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	empty, err := h.svc.Preview(ctx, domain.PreviewRequest{})
	require.NoError(t, err)
	assert.True(t, empty.Summary.Totals.Total.IsZero())

	_, err = h.svc.Preview(ctx, domain.PreviewRequest{Lines: []lineitem.Input{{ServiceID: "123", Quantity: 1}}})
	assert.ErrorIs(t, err, lineitem.ErrUnknownService)
}

func TestSnapshotSurvivesCatalogChange(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc, client := h.seed(t, false)

	q, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: client.ID.String(), Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	assert.False(t, q.IsInternal)
	assert.Equal(t, "2150", q.Total.String())

	price := decimal.NewFromInt(9000)
	_, err = h.catalog.Update(ctx, catalogdomain.UpdateRequest{ID: qc.ID.String(), Price: &price})
	require.NoError(t, err)

	summary, err := h.svc.Summary(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "2150", summary.Totals.Total.String())
}

func TestLifecycle(t *testing.T) {
	h := setup(t)
	ctx := obscontext.WithActor(context.Background(), "admin", "7")
	wgs, qc, client := h.seed(t, true)

	q, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{
		ClientID: client.ID.String(),
		Lines:    []lineitem.Input{{ServiceID: qc.ID.String(), Quantity: 0}},
		CC:       []string{"PI@uni.edu", "pi@uni.edu", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pi@uni.edu"}, []string(q.CC))

	_, err = h.svc.Submit(ctx, q.ID.String())
	assert.ErrorIs(t, err, domain.ErrNoBillableLines)

	q, err = h.svc.ReplaceLines(ctx, q.ID.String(), domain.ReplaceLinesRequest{Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	assert.Equal(t, "1892", q.Total.String())

	_, err = h.svc.Approve(ctx, q.ID.String(), domain.DecisionRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	q, err = h.svc.Submit(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, q.Status)

	_, err = h.svc.ReplaceLines(ctx, q.ID.String(), domain.ReplaceLinesRequest{Lines: standardLines(wgs, qc)})
	assert.ErrorIs(t, err, domain.ErrNotEditable)

	q, err = h.svc.Approve(ctx, q.ID.String(), domain.DecisionRequest{Notes: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, q.Status)
	require.NotNil(t, q.ValidUntil)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), q.ValidUntil.UTC())
	require.NotNil(t, q.DecidedBy)
	assert.Equal(t, "7", *q.DecidedBy)

	html, err := h.svc.RenderSummary(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Contains(t, string(html), q.Reference)
	assert.Contains(t, string(html), "May 1, 2026")

	pdfRes, err := h.svc.RenderPDF(ctx, q.ID.String())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pdfRes.ObjectKey, "quotations/q-202604-0001-"))
	data, err := h.store.Get(ctx, pdfRes.ObjectKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	q, err = h.svc.Send(ctx, q.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, q.Status)
	require.Len(t, h.email.sent, 1)
	assert.Equal(t, []string{"reyes@uni.edu", "pi@uni.edu"}, h.email.sent[0].to)
	assert.Equal(t, "1,892.00", h.email.sent[0].data["total"])
	assert.Len(t, h.store.Keys(), 1)

	logs, err := h.audit.List(ctx, auditdomain.ListAuditLogRequest{ListFilter: auditdomain.ListFilter{TargetID: q.ID.String()}})
	require.NoError(t, err)
	assert.Len(t, logs.AuditLogs, 3)
}

func TestRejectAndExpire(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc, client := h.seed(t, false)

	rejected, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: client.ID.String(), Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, rejected.ID.String())
	require.NoError(t, err)
	rejected, err = h.svc.Reject(ctx, rejected.ID.String(), domain.DecisionRequest{Notes: "wrong tier"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "wrong tier", rejected.ReviewNotes)

	approved, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: client.ID.String(), Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	assert.Equal(t, "Q-202604-0002", approved.Reference)
	_, err = h.svc.Submit(ctx, approved.ID.String())
	require.NoError(t, err)
	_, err = h.svc.Approve(ctx, approved.ID.String(), domain.DecisionRequest{})
	require.NoError(t, err)

	n, err := h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.clock.Advance(31 * 24 * time.Hour)
	n, err = h.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.svc.Get(ctx, approved.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	list, err := h.svc.List(ctx, domain.ListQuotationRequest{Status: "rejected"})
	require.NoError(t, err)
	require.Len(t, list.Quotations, 1)
	assert.Equal(t, rejected.ID, list.Quotations[0].ID)

	_, err = h.svc.List(ctx, domain.ListQuotationRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestCreateDraftValidatesClientAndProject(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	wgs, qc, client := h.seed(t, false)

	_, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: "999", Lines: standardLines(wgs, qc)})
	assert.ErrorIs(t, err, domain.ErrInvalidClient)

	other, err := h.projects.Register(ctx, projectdomain.RegisterRequest{
		Client: clientdomain.IntakeRequest{Name: "Other", Email: "other@uni.edu"},
		Title:  "Other project",
	})
	require.NoError(t, err)

	_, err = h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: client.ID.String(), ProjectID: other.Project.ID.String(), Lines: standardLines(wgs, qc)})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	internal := true
	q, err := h.svc.CreateDraft(ctx, domain.CreateQuotationRequest{ClientID: other.Client.ID.String(), ProjectID: other.Project.ID.String(), IsInternal: &internal, Lines: standardLines(wgs, qc)})
	require.NoError(t, err)
	assert.True(t, q.IsInternal)
	require.NotNil(t, q.ProjectID)
	assert.Equal(t, other.Project.ID, *q.ProjectID)
}
