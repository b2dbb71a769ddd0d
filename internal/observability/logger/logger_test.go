package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDescribeStatement(t *testing.T) {
	cases := []struct {
		sql, verb, table string
	}{
		{`SELECT * FROM "quotations" WHERE id = $1`, "SELECT", "quotations"},
		{`INSERT INTO "inquiries" ("id") VALUES ($1)`, "INSERT", "inquiries"},
		{`UPDATE "charge_slips" SET "status"=$1`, "UPDATE", "charge_slips"},
		{`DELETE FROM project_members WHERE project_id = ?`, "DELETE", "project_members"},
		{`PRAGMA foreign_keys = ON`, "OTHER", ""},
	}
	for _, tc := range cases {
		verb, table := describeStatement(tc.sql)
		assert.Equal(t, tc.verb, verb, tc.sql)
		assert.Equal(t, tc.table, table, tc.sql)
	}
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/admin/backups", http.StatusInternalServerError))
	assert.Equal(t, zapcore.WarnLevel, requestLevel("/portal/inquiries", http.StatusTooManyRequests))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/portal/services", http.StatusOK))
}

func TestWithContextAddsOnlyPresentFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")
	ctx := obscontext.WithActor(obscontext.WithRequestID(context.Background(), "req-1"), "admin", "42")
	WithContext(ctx, base).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	fields := entries[1].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "admin", fields["actor_type"])
	assert.Equal(t, "42", fields["actor_id"])
}

func TestGinMiddlewareEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
