package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/seqdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/seqdesk/internal/audit/service"
	"github.com/smallbiznis/seqdesk/internal/backup/domain"
	"github.com/smallbiznis/seqdesk/internal/backup/repository"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
	store *storage.MemoryStore
	email *fakeEmail
}

func setup(t *testing.T, models ...any) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BackupRun{}, &auditdomain.AuditLog{}))
	require.NoError(t, db.AutoMigrate(models...))

	node, _ := snowflake.NewNode(4)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC))
	store := storage.NewMemory()
	mail := &fakeEmail{}

	cfg := config.Config{}
	cfg.SMTP.AdminInbox = "ops@core.org"

	svc := New(Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Cfg:   cfg,
		Repo:  repository.Provide(),
		Store: store,
		Email: mail,
		Audit: auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide()}),
	})
	return &harness{svc: svc, db: db, clock: fake, store: store, email: mail}
}

func allModels() []any {
	return []any{
		&catalogdomain.ServiceDefinition{},
		&clientdomain.Client{},
		&projectdomain.Project{},
		&projectdomain.TeamMember{},
		&inquirydomain.Inquiry{},
		&quotationdomain.Quotation{},
		&quotationdomain.Line{},
		&chargeslipdomain.ChargeSlip{},
		&chargeslipdomain.Line{},
	}
}

func TestRunExportsEveryTable(t *testing.T) {
	h := setup(t, allModels()...)
	ctx := context.Background()

	now := h.clock.Now()
	require.NoError(t, h.db.Create(&catalogdomain.ServiceDefinition{
		ID: 1580000000000000001, Code: "wgs", Name: "Whole genome analysis", Price: decimal.NewFromInt(1000),
		PricingModel: pricing.ModelFlat, Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, h.db.Create(&clientdomain.Client{
		ID: 1580000000000000002, Name: "Dr. Reyes", Email: "reyes@uni.edu", Metadata: datatypes.JSONMap{}, CreatedAt: now, UpdatedAt: now,
	}).Error)

	run, err := h.svc.Run(ctx, domain.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, run.Status)
	assert.Equal(t, "backups/"+run.RunKey+".xlsx", run.ObjectKey)
	assert.Equal(t, int64(1), run.RowCounts["service_definitions"])
	assert.Equal(t, int64(0), run.RowCounts["charge_slips"])

	data, err := h.store.Get(ctx, run.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), run.SizeBytes)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{
		"Services", "Clients", "Projects", "Project Members", "Inquiries",
		"Quotations", "Quotation Lines", "Charge Slips", "Charge Slip Lines",
	}, f.GetSheetList())

	rows, err := f.GetRows("Services")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "1580000000000000001", rows[1][0])

	require.Len(t, h.email.sent, 1)
	assert.Equal(t, email.TemplateBackupReport, h.email.sent[0].template)
	assert.Equal(t, []string{"ops@core.org"}, h.email.sent[0].to)

	ok, err := h.svc.SucceededSince(ctx, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.svc.SucceededSince(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunRecordsFailure(t *testing.T) {
	// quotation and charge slip tables are missing
	h := setup(t, &catalogdomain.ServiceDefinition{}, &clientdomain.Client{}, &projectdomain.Project{}, &projectdomain.TeamMember{}, &inquirydomain.Inquiry{})
	ctx := context.Background()

	run, err := h.svc.Run(ctx, domain.TriggerScheduled)
	require.Error(t, err)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "export quotations")
	assert.Empty(t, run.ObjectKey)
	assert.Empty(t, h.store.Keys())

	list, err := h.svc.List(ctx, domain.ListBackupRequest{})
	require.NoError(t, err)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, domain.StatusFailed, list.Runs[0].Status)

	ok, err := h.svc.SucceededSince(ctx, h.clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunRejectsUnknownTrigger(t *testing.T) {
	h := setup(t, allModels()...)
	_, err := h.svc.Run(context.Background(), domain.Trigger("cron"))
	assert.ErrorIs(t, err, domain.ErrInvalidTrigger)
}
