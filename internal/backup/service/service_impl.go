package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/internal/backup/domain"
	"github.com/smallbiznis/seqdesk/internal/clock"
	"github.com/smallbiznis/seqdesk/internal/config"
	"github.com/smallbiznis/seqdesk/internal/observability/metrics"
	"github.com/smallbiznis/seqdesk/internal/providers/email"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportTables lists the tables copied into every backup, one sheet each.
var exportTables = []struct {
	Table string
	Sheet string
}{
	{"service_definitions", "Services"},
	{"clients", "Clients"},
	{"projects", "Projects"},
	{"project_members", "Project Members"},
	{"inquiries", "Inquiries"},
	{"quotations", "Quotations"},
	{"quotation_lines", "Quotation Lines"},
	{"charge_slips", "Charge Slips"},
	{"charge_slip_lines", "Charge Slip Lines"},
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Repo    domain.Repository
	Store   storage.Store
	Email   email.Provider
	Audit   auditdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	repo    domain.Repository
	store   storage.Store
	email   email.Provider
	audit   auditdomain.Service
	metrics *metrics.Metrics

	running sync.Mutex
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("backup.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Cfg,
		repo:    p.Repo,
		store:   p.Store,
		email:   p.Email,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

// Run exports every business table into one workbook and uploads it. Only
// one run executes at a time per process.
func (s *Service) Run(ctx context.Context, trigger domain.Trigger) (domain.BackupRun, error) {
	if trigger != domain.TriggerManual && trigger != domain.TriggerScheduled {
		return domain.BackupRun{}, domain.ErrInvalidTrigger
	}
	if !s.running.TryLock() {
		return domain.BackupRun{}, domain.ErrAlreadyRunning
	}
	defer s.running.Unlock()

	now := s.clock.Now()
	run := domain.BackupRun{
		ID:        s.genID.Generate(),
		RunKey:    ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Trigger:   trigger,
		Status:    domain.StatusRunning,
		StartedAt: now,
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &run); err != nil {
		s.log.Error("failed to record backup run", zap.Error(err))
		return domain.BackupRun{}, err
	}

	counts, size, runErr := s.export(ctx, &run)

	finished := s.clock.Now()
	run.FinishedAt = &finished
	run.RowCounts = datatypes.JSONMap{}
	for table, n := range counts {
		run.RowCounts[table] = n
	}
	run.SizeBytes = size
	run.Status = domain.StatusSucceeded
	if runErr != nil {
		run.Status = domain.StatusFailed
		run.Error = runErr.Error()
		run.ObjectKey = ""
	}

	if err := s.repo.Finish(context.WithoutCancel(ctx), s.db, &run); err != nil {
		s.log.Error("failed to finish backup run", zap.String("run_key", run.RunKey), zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	s.metrics.RecordBackupRun(string(run.Status))
	s.report(ctx, run, counts)

	targetID := run.ID.String()
	metadata := map[string]any{"run_key": run.RunKey, "status": string(run.Status), "trigger": string(trigger)}
	if err := s.audit.AuditLog(ctx, "", nil, "backup.run", "backup", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit backup", zap.Error(err))
	}

	if runErr != nil {
		s.log.Error("backup failed", zap.String("run_key", run.RunKey), zap.Error(runErr))
		return run, runErr
	}
	s.log.Info("backup completed",
		zap.String("run_key", run.RunKey),
		zap.String("object_key", run.ObjectKey),
		zap.Int64("size_bytes", run.SizeBytes),
	)
	return run, nil
}

func (s *Service) export(ctx context.Context, run *domain.BackupRun) (map[string]int64, int64, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn("failed to close workbook", zap.Error(err))
		}
	}()

	counts := make(map[string]int64, len(exportTables))
	for i, t := range exportTables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Sheet); err != nil {
				return counts, 0, err
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return counts, 0, err
		}

		w, err := newSheetWriter(f, t.Sheet)
		if err != nil {
			return counts, 0, err
		}
		n, err := s.repo.ExportTable(ctx, s.db, t.Table, w)
		if err != nil {
			return counts, 0, fmt.Errorf("export %s: %w", t.Table, err)
		}
		if err := w.Flush(); err != nil {
			return counts, 0, err
		}
		counts[t.Table] = n
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return counts, 0, err
	}

	key := "backups/" + run.RunKey + ".xlsx"
	if err := s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), xlsxContentType); err != nil {
		return counts, 0, fmt.Errorf("upload backup: %w", err)
	}
	run.ObjectKey = key
	return counts, int64(buf.Len()), nil
}

func (s *Service) report(ctx context.Context, run domain.BackupRun, counts map[string]int64) {
	inbox := strings.TrimSpace(s.cfg.SMTP.AdminInbox)
	if inbox == "" {
		return
	}
	err := s.email.SendTemplate(ctx, []string{inbox}, email.TemplateBackupReport, map[string]any{
		"run_id":     run.RunKey,
		"status":     string(run.Status),
		"object_key": run.ObjectKey,
		"error":      run.Error,
		"counts":     counts,
	})
	if err != nil {
		s.log.Warn("failed to send backup report", zap.String("run_key", run.RunKey), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req domain.ListBackupRequest) (domain.ListBackupResponse, error) {
	pageSize := pagination.PageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize})
	if err != nil {
		return domain.ListBackupResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(r *domain.BackupRun) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	runs := make([]domain.BackupRun, 0, len(items))
	for _, item := range items {
		if item != nil {
			runs = append(runs, *item)
		}
	}
	return domain.ListBackupResponse{PageInfo: *pageInfo, Runs: runs}, nil
}

func (s *Service) SucceededSince(ctx context.Context, t time.Time) (bool, error) {
	count, err := s.repo.CountSucceededSince(ctx, s.db, t)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
