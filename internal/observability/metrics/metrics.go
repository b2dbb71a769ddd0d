package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

// Config supplies the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes domain counters. A nil *Metrics is valid and records
// nothing, so services can be built without it in tests.
type Metrics struct {
	inquiriesSubmitted *prometheus.CounterVec
	quotationEvents    *prometheus.CounterVec
	documentsRendered  *prometheus.CounterVec
	documentRenderTime *prometheus.HistogramVec
	backupRuns         *prometheus.CounterVec
	emailsSent         *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	jobErrors          *prometheus.CounterVec
}

// New registers the domain instruments with the default registerer.
func New(cfg Config) (*Metrics, error) {
	return NewWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewWithRegisterer(registerer prometheus.Registerer, cfg Config) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &Metrics{
		inquiriesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_inquiries_submitted_total",
			Help:        "Portal inquiries submitted, by claimed client kind.",
			ConstLabels: constLabels,
		}, []string{"client_kind"}),
		quotationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_quotation_events_total",
			Help:        "Quotation lifecycle transitions.",
			ConstLabels: constLabels,
		}, []string{"event"}),
		documentsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_documents_rendered_total",
			Help:        "Rendered quotation and charge slip documents.",
			ConstLabels: constLabels,
		}, []string{"kind", "format"}),
		documentRenderTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "seqdesk_document_render_seconds",
			Help:        "Time spent rendering a document.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"kind", "format"}),
		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_backup_runs_total",
			Help:        "Backup runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_emails_total",
			Help:        "Outbound emails by template and outcome.",
			ConstLabels: constLabels,
		}, []string{"template", "status"}),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_rate_limit_decisions_total",
			Help:        "Portal rate limit decisions.",
			ConstLabels: constLabels,
		}, []string{"endpoint", "decision"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "seqdesk_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seqdesk_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
	}

	collectors := []prometheus.Collector{
		m.inquiriesSubmitted,
		m.quotationEvents,
		m.documentsRendered,
		m.documentRenderTime,
		m.backupRuns,
		m.emailsSent,
		m.rateLimitDecisions,
		m.jobRuns,
		m.jobDuration,
		m.jobErrors,
	}
	for i, collector := range collectors {
		registered, err := register(registerer, collector)
		if err != nil {
			return nil, err
		}
		collectors[i] = registered
	}
	m.inquiriesSubmitted = collectors[0].(*prometheus.CounterVec)
	m.quotationEvents = collectors[1].(*prometheus.CounterVec)
	m.documentsRendered = collectors[2].(*prometheus.CounterVec)
	m.documentRenderTime = collectors[3].(*prometheus.HistogramVec)
	m.backupRuns = collectors[4].(*prometheus.CounterVec)
	m.emailsSent = collectors[5].(*prometheus.CounterVec)
	m.rateLimitDecisions = collectors[6].(*prometheus.CounterVec)
	m.jobRuns = collectors[7].(*prometheus.CounterVec)
	m.jobDuration = collectors[8].(*prometheus.HistogramVec)
	m.jobErrors = collectors[9].(*prometheus.CounterVec)

	return m, nil
}

// register returns the already registered collector when an identical one
// exists, which happens when an fx app is built more than once per process.
func register(registerer prometheus.Registerer, collector prometheus.Collector) (prometheus.Collector, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector, nil
		}
		return nil, err
	}
	return collector, nil
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "seqdesk"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func (m *Metrics) RecordInquirySubmitted(internal bool) {
	if m == nil {
		return
	}
	kind := "external"
	if internal {
		kind = "internal"
	}
	m.inquiriesSubmitted.WithLabelValues(kind).Inc()
}

// RecordQuotationEvent counts a lifecycle event such as "created" or "approved".
func (m *Metrics) RecordQuotationEvent(event string) {
	if m == nil {
		return
	}
	m.quotationEvents.WithLabelValues(strings.TrimSpace(event)).Inc()
}

func (m *Metrics) ObserveDocumentRendered(kind, format string, seconds float64) {
	if m == nil {
		return
	}
	m.documentsRendered.WithLabelValues(kind, format).Inc()
	m.documentRenderTime.WithLabelValues(kind, format).Observe(seconds)
}

func (m *Metrics) RecordBackupRun(status string) {
	if m == nil {
		return
	}
	m.backupRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordEmail(template string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.emailsSent.WithLabelValues(template, status).Inc()
}

func (m *Metrics) RecordRateLimit(endpoint string, allowed bool) {
	if m == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.rateLimitDecisions.WithLabelValues(endpoint, decision).Inc()
}

// ObserveJob records one scheduler job execution.
func (m *Metrics) ObserveJob(job string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
	m.jobDuration.WithLabelValues(job).Observe(seconds)
	if err != nil {
		m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
	}
}

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonCanceled             = "canceled"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUnknown              = "unknown"
)

// ClassifyJobReason maps an error to a bounded label value.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return JobReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return JobReasonCanceled
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return JobReasonUniqueViolation
		case "40001":
			return JobReasonSerializationFailure
		}
	}
	return JobReasonUnknown
}
