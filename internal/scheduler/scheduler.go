package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobQuotationExpiry = "quotation_expiry"
	JobDailyBackup     = "daily_backup"
	JobInquiryReminder = "inquiry_reminder"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	AppConfig  config.Config
	Config     Config `optional:"true"`
	Quotations quotationdomain.Service
	Backups    backupdomain.Service
	Inquiries  inquirydomain.Service
	Email      email.Provider
	Metrics    *metrics.Metrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	adminInbox string
	genID      *snowflake.Node
	clock      clock.Clock
	quotations quotationdomain.Service
	backups    backupdomain.Service
	inquiries  inquirydomain.Service
	email      email.Provider
	metrics    *metrics.Metrics

	mu           sync.Mutex
	lastReminder string
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Quotations == nil || p.Backups == nil || p.Inquiries == nil || p.Email == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		adminInbox: strings.TrimSpace(p.AppConfig.SMTP.AdminInbox),
		genID:      p.GenID,
		clock:      p.Clock,
		quotations: p.Quotations,
		backups:    p.Backups,
		inquiries:  p.Inquiries,
		email:      p.Email,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx, run)
	s.metrics.ObserveJob(name, time.Since(start).Seconds(), err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// a deadline is a soft timeout; the next tick picks the work up again
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every job a single time. Job failures are joined so one
// failing job does not starve the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context, *jobRun) error
	}{
		{JobQuotationExpiry, s.cfg.JobTimeout, s.ExpireQuotationsJob},
		{JobDailyBackup, s.cfg.BackupTimeout, s.DailyBackupJob},
		{JobInquiryReminder, s.cfg.JobTimeout, s.InquiryReminderJob},
	}

	for _, job := range jobs {
		if parent.Err() != nil {
			return errors.Join(err, parent.Err())
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Timeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpireQuotationsJob drains issued quotations whose validity has lapsed.
func (s *Scheduler) ExpireQuotationsJob(ctx context.Context, run *jobRun) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.quotations.ExpireDue(ctx)
		run.AddProcessed(n)
		if err != nil {
			s.logJobError(ctx, run, "scheduler.quotation.expire.failed", err)
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// DailyBackupJob takes one scheduled backup per UTC day once the configured
// hour has passed. A manual backup earlier the same day counts.
func (s *Scheduler) DailyBackupJob(ctx context.Context, run *jobRun) error {
	now := s.clock.Now().UTC()
	if now.Hour() < s.cfg.BackupHourUTC {
		return nil
	}

	done, err := s.backups.SucceededSince(ctx, startOfDay(now))
	if err != nil {
		s.logJobError(ctx, run, "scheduler.backup.lookup.failed", err)
		return err
	}
	if done {
		return nil
	}

	result, err := s.backups.Run(ctx, backupdomain.TriggerScheduled)
	if errors.Is(err, backupdomain.ErrAlreadyRunning) {
		return nil
	}
	if err != nil {
		s.logJobError(ctx, run, "scheduler.backup.failed", err, zap.String("run_key", result.RunKey))
		return err
	}
	run.AddProcessed(1)
	return nil
}

type reminderEntry struct {
	TrackingCode string
	ContactName  string
	Institution  string
	SubmittedAt  string
}

// InquiryReminderJob mails the admin inbox a digest of inquiries that have
// waited longer than the reminder window. At most one digest goes out per
// UTC day.
func (s *Scheduler) InquiryReminderJob(ctx context.Context, run *jobRun) error {
	if s.adminInbox == "" {
		return nil
	}
	day := startOfDay(s.clock.Now().UTC()).Format(time.DateOnly)

	s.mu.Lock()
	sent := s.lastReminder == day
	s.mu.Unlock()
	if sent {
		return nil
	}

	pending, err := s.inquiries.ListPendingOlderThan(ctx, s.cfg.ReminderAfter, s.cfg.BatchSize)
	if err != nil {
		s.logJobError(ctx, run, "scheduler.inquiry.list.failed", err)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	entries := make([]reminderEntry, 0, len(pending))
	for _, inq := range pending {
		entries = append(entries, reminderEntry{
			TrackingCode: inq.TrackingCode,
			ContactName:  inq.ContactName,
			Institution:  inq.Institution,
			SubmittedAt:  inq.CreatedAt.UTC().Format(time.DateOnly),
		})
	}

	err = s.email.SendTemplate(ctx, []string{s.adminInbox}, email.TemplateInquiryReminder, map[string]any{
		"count":      len(entries),
		"older_than": s.cfg.ReminderAfter.String(),
		"inquiries":  entries,
	})
	s.metrics.RecordEmail(email.TemplateInquiryReminder, err)
	if err != nil {
		s.logJobError(ctx, run, "scheduler.inquiry.reminder.failed", err, zap.Int("pending", len(entries)))
		return err
	}

	s.mu.Lock()
	s.lastReminder = day
	s.mu.Unlock()
	run.AddProcessed(len(entries))
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
