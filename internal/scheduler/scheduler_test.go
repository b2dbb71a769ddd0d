package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQuotations struct {
	quotationdomain.Service
	batches []int
	err     error
	calls   int
}

func (f *fakeQuotations) ExpireDue(ctx context.Context) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

type fakeBackups struct {
	succeeded []time.Time
	runs      []backupdomain.Trigger
	runErr    error
	clock     clock.Clock
}

func (f *fakeBackups) Run(ctx context.Context, trigger backupdomain.Trigger) (backupdomain.BackupRun, error) {
	if f.runErr != nil {
		return backupdomain.BackupRun{}, f.runErr
	}
	f.runs = append(f.runs, trigger)
	f.succeeded = append(f.succeeded, f.clock.Now())
	return backupdomain.BackupRun{RunKey: "run", Trigger: trigger, Status: backupdomain.StatusSucceeded}, nil
}

func (f *fakeBackups) List(context.Context, backupdomain.ListBackupRequest) (backupdomain.ListBackupResponse, error) {
	return backupdomain.ListBackupResponse{}, nil
}

func (f *fakeBackups) SucceededSince(ctx context.Context, t time.Time) (bool, error) {
	for _, at := range f.succeeded {
		if !at.Before(t) {
			return true, nil
		}
	}
	return false, nil
}

type fakeInquiries struct {
	inquirydomain.Service
	pending []inquirydomain.Inquiry
	ages    []time.Duration
}

func (f *fakeInquiries) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]inquirydomain.Inquiry, error) {
	f.ages = append(f.ages, age)
	return f.pending, nil
}

type sentMail struct {
	to       []string
	template string
	data     map[string]any
}

type fakeEmail struct {
	sent []sentMail
	err  error
}

func (f *fakeEmail) Send(context.Context, []string, string, string) error { return f.err }

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, name string, data map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, template: name, data: data})
	return nil
}

type harness struct {
	sched     *Scheduler
	clock     *clock.FakeClock
	quotes    *fakeQuotations
	backups   *fakeBackups
	inquiries *fakeInquiries
	email     *fakeEmail
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(start)
	h := &harness{
		clock:     clk,
		quotes:    &fakeQuotations{},
		backups:   &fakeBackups{clock: clk},
		inquiries: &fakeInquiries{},
		email:     &fakeEmail{},
	}

	var appCfg config.Config
	appCfg.SMTP.AdminInbox = "core@seq.example"

	h.sched, err = New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		AppConfig:  appCfg,
		Config:     Config{BackupHourUTC: 2, ReminderAfter: 48 * time.Hour},
		Quotations: h.quotes,
		Backups:    h.backups,
		Inquiries:  h.inquiries,
		Email:      h.email,
	})
	require.NoError(t, err)
	return h
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExpireQuotationsJob_DrainsBatches(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC))
	h.quotes.batches = []int{200, 200, 13}

	require.NoError(t, h.sched.runJob(context.Background(), JobQuotationExpiry, time.Second, h.sched.ExpireQuotationsJob))
	assert.Equal(t, 4, h.quotes.calls)
}

func TestExpireQuotationsJob_WrapsError(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC))
	h.quotes.err = errors.New("db down")

	err := h.sched.runJob(context.Background(), JobQuotationExpiry, time.Second, h.sched.ExpireQuotationsJob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotation_expiry: db down")
}

func TestDailyBackupJob_WaitsForHourAndRunsOncePerDay(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 1, 15, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Empty(t, h.backups.runs, "before the backup hour")

	h.clock.Advance(time.Hour)
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Equal(t, []backupdomain.Trigger{backupdomain.TriggerScheduled}, h.backups.runs)

	h.clock.Advance(3 * time.Hour)
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Len(t, h.backups.runs, 1, "already backed up today")

	h.clock.Set(time.Date(2026, 6, 2, 2, 0, 0, 0, time.UTC))
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Len(t, h.backups.runs, 2)
}

func TestDailyBackupJob_ManualBackupCounts(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	h.backups.succeeded = []time.Time{time.Date(2026, 6, 1, 0, 5, 0, 0, time.UTC)}

	require.NoError(t, h.sched.RunOnce(context.Background()))
	assert.Empty(t, h.backups.runs)
}

func TestDailyBackupJob_SkipsWhenAlreadyRunning(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	h.backups.runErr = backupdomain.ErrAlreadyRunning

	assert.NoError(t, h.sched.RunOnce(context.Background()))
}

func TestInquiryReminderJob_SendsOneDigestPerDay(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC))
	h.inquiries.pending = []inquirydomain.Inquiry{
		{TrackingCode: "01J0A", ContactName: "Ana Cruz", Institution: "UP Diliman", CreatedAt: time.Date(2026, 5, 28, 8, 0, 0, 0, time.UTC)},
		{TrackingCode: "01J0B", ContactName: "Ben Reyes", CreatedAt: time.Date(2026, 5, 29, 8, 0, 0, 0, time.UTC)},
	}
	ctx := context.Background()

	require.NoError(t, h.sched.RunOnce(ctx))
	require.Len(t, h.email.sent, 1)
	mail := h.email.sent[0]
	assert.Equal(t, []string{"core@seq.example"}, mail.to)
	assert.Equal(t, email.TemplateInquiryReminder, mail.template)
	assert.Equal(t, 2, mail.data["count"])
	assert.Equal(t, "48h0m0s", mail.data["older_than"])
	entries := mail.data["inquiries"].([]reminderEntry)
	assert.Equal(t, "2026-05-28", entries[0].SubmittedAt)
	assert.Equal(t, []time.Duration{48 * time.Hour}, h.inquiries.ages)

	h.clock.Advance(6 * time.Hour)
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Len(t, h.email.sent, 1)

	h.clock.Advance(24 * time.Hour)
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Len(t, h.email.sent, 2)
}

func TestInquiryReminderJob_RetriesAfterSendFailure(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC))
	h.inquiries.pending = []inquirydomain.Inquiry{{TrackingCode: "01J0A", ContactName: "Ana Cruz"}}
	h.email.err = errors.New("smtp unavailable")
	ctx := context.Background()

	err := h.sched.RunOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobInquiryReminder)

	h.email.err = nil
	require.NoError(t, h.sched.RunOnce(ctx))
	assert.Len(t, h.email.sent, 1)
}

func TestInquiryReminderJob_NothingPending(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 0, 30, 0, 0, time.UTC))

	require.NoError(t, h.sched.RunOnce(context.Background()))
	assert.Empty(t, h.email.sent)
}

func TestRunOnce_StopsWhenCanceled(t *testing.T) {
	h := newHarness(t, time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.sched.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.quotes.calls)
	assert.Empty(t, h.backups.runs)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BackupHourUTC: 30}.withDefaults()
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 2, cfg.BackupHourUTC)
	assert.Equal(t, 200, cfg.BatchSize)
	assert.Equal(t, 48*time.Hour, cfg.ReminderAfter)
}
