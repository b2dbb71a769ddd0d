package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("expire: %w", context.DeadlineExceeded), want: JobReasonDeadlineExceeded},
		{name: "canceled", err: context.Canceled, want: JobReasonCanceled},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: JobReasonUniqueViolation},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: JobReasonSerializationFailure},
		{name: "other", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestMetricsRecordsDomainEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewWithRegisterer(registry, Config{ServiceName: "seqdesk", Environment: "test"})
	require.NoError(t, err)

	m.RecordInquirySubmitted(true)
	m.RecordInquirySubmitted(false)
	m.RecordInquirySubmitted(true)
	m.ObserveJob("quotation_expiry", 0.2, errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.inquiriesSubmitted.WithLabelValues("internal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("quotation_expiry", JobReasonUnknown)))

	again, err := NewWithRegisterer(registry, Config{ServiceName: "seqdesk", Environment: "test"})
	require.NoError(t, err)
	again.RecordInquirySubmitted(true)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.inquiriesSubmitted.WithLabelValues("internal")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordQuotationEvent("approved")
		m.ObserveDocumentRendered("quotation", "pdf", 0.1)
		m.RecordRateLimit("/portal/inquiries", false)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	h, err := NewHTTPMetricsWithRegisterer(registry, Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(h.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(h.requests.WithLabelValues(http.MethodGet, "/health", "200")))
}
