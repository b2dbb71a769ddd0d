package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/authorization"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/internal/ratelimit"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminToken = "admin-token"
	staffToken = "staff-token"
)

type fakeAuthService struct {
	authdomain.Service

	loginErr error
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Principal, error) {
	switch rawToken {
	case adminToken:
		return &authdomain.Principal{UserID: snowflake.ID(1), Email: "admin@lab.test", Role: authdomain.RoleAdmin}, nil
	case staffToken:
		return &authdomain.Principal{UserID: snowflake.ID(2), Email: "staff@lab.test", Role: authdomain.RoleStaff}, nil
	default:
		return nil, authdomain.ErrInvalidToken
	}
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authdomain.LoginResult{Token: adminToken, User: &authdomain.AdminUser{ID: snowflake.ID(1), Email: req.Email}}, nil
}

// fakeAuthorizer lets admins do anything and staff only read.
type fakeAuthorizer struct{}

func (fakeAuthorizer) Authorize(ctx context.Context, subject authorization.Subject, object string, action string) error {
	if subject.Role == string(authdomain.RoleAdmin) {
		return nil
	}
	switch action {
	case authorization.ActionQuotationView, authorization.ActionServiceView, authorization.ActionBackupView:
		return nil
	}
	return authorization.ErrForbidden
}

type auditEntry struct {
	actorType string
	action    string
}

type fakeAuditService struct {
	auditdomain.Service

	entries []auditEntry
}

func (f *fakeAuditService) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	f.entries = append(f.entries, auditEntry{actorType: actorType, action: action})
	return nil
}

type fakeQuotationService struct {
	quotationdomain.Service

	previewReq quotationdomain.PreviewRequest
	approveErr error
	actorType  string
}

func (f *fakeQuotationService) Preview(ctx context.Context, req quotationdomain.PreviewRequest) (quotationdomain.PreviewResponse, error) {
	f.previewReq = req
	f.actorType, _ = obscontext.ActorFromContext(ctx)
	return quotationdomain.PreviewResponse{
		Summary: pricing.Summary{Totals: pricing.Totals{Total: decimal.NewFromInt(1500)}},
	}, nil
}

func (f *fakeQuotationService) Approve(ctx context.Context, id string, req quotationdomain.DecisionRequest) (quotationdomain.Quotation, error) {
	if f.approveErr != nil {
		return quotationdomain.Quotation{}, f.approveErr
	}
	return quotationdomain.Quotation{}, nil
}

func (f *fakeQuotationService) Summary(ctx context.Context, id string) (pricing.Summary, error) {
	return pricing.Summary{Totals: pricing.Totals{Total: decimal.NewFromInt(900)}}, nil
}

func (f *fakeQuotationService) RenderSummary(ctx context.Context, id string) (template.HTML, error) {
	return template.HTML("<section>summary " + id + "</section>"), nil
}

type fakeInquiryService struct {
	inquirydomain.Service

	submitted int
}

func (f *fakeInquiryService) Submit(ctx context.Context, req inquirydomain.SubmitRequest) (inquirydomain.SubmitResponse, error) {
	f.submitted++
	return inquirydomain.SubmitResponse{TrackingCode: "INQ-2026-0001", Status: inquirydomain.StatusSubmitted}, nil
}

type fakeCatalogService struct {
	catalogdomain.Service
}

func (fakeCatalogService) ExportXLSX(ctx context.Context, w io.Writer) error {
	_, err := w.Write([]byte("PK-xlsx"))
	return err
}

type fakeLimiter struct {
	result ratelimit.Result
	err    error
	keys   []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	return f.result, f.err
}

type testDeps struct {
	auth       *fakeAuthService
	audit      *fakeAuditService
	quotations *fakeQuotationService
	inquiries  *fakeInquiryService
	limiter    ratelimit.Limiter
}

func newTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if deps.auth == nil {
		deps.auth = &fakeAuthService{}
	}
	if deps.audit == nil {
		deps.audit = &fakeAuditService{}
	}
	if deps.quotations == nil {
		deps.quotations = &fakeQuotationService{}
	}
	if deps.inquiries == nil {
		deps.inquiries = &fakeInquiryService{}
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:       engine,
		log:          zap.NewNop(),
		validate:     newValidator(),
		authSvc:      deps.auth,
		authzSvc:     fakeAuthorizer{},
		auditSvc:     deps.audit,
		catalogSvc:   fakeCatalogService{},
		quotationSvc: deps.quotations,
		inquirySvc:   deps.inquiries,
		limiter:      deps.limiter,
	}
	s.registerPortalRoutes()
	s.registerAuthRoutes()
	s.registerAdminRoutes()
	s.registerFallback()
	return s
}

func doRequest(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.Engine().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestPortalPreviewPricesBasket(t *testing.T) {
	quotations := &fakeQuotationService{}
	s := newTestServer(t, testDeps{quotations: quotations})

	resp := doRequest(s, http.MethodPost, "/portal/quotations/preview", "",
		`{"lines":[{"service_id":"101","quantity":"3"},{"service_id":"102","quantity":0}],"is_internal":true}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":"1500"`)
	require.Len(t, quotations.previewReq.Lines, 2)
	assert.Equal(t, lineitem.Quantity(3), quotations.previewReq.Lines[0].Quantity)
	assert.True(t, quotations.previewReq.IsInternal)
	assert.Equal(t, string(auditdomain.ActorTypePortal), quotations.actorType)
}

func TestPortalInquiryValidation(t *testing.T) {
	inquiries := &fakeInquiryService{}
	s := newTestServer(t, testDeps{inquiries: inquiries})

	resp := doRequest(s, http.MethodPost, "/portal/inquiries", "",
		`{"contact_name":"Dr. Ana","email":"not-an-email","services":[]}`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)

	fields := map[string]string{}
	for _, e := range payload.Errors {
		fields[e.Field] = e.Code
	}
	assert.Equal(t, "email", fields["email"])
	assert.Equal(t, "min", fields["services"])
	assert.Zero(t, inquiries.submitted)
}

func TestPortalInquirySubmitted(t *testing.T) {
	inquiries := &fakeInquiryService{}
	s := newTestServer(t, testDeps{inquiries: inquiries})

	resp := doRequest(s, http.MethodPost, "/portal/inquiries", "",
		`{"contact_name":"Dr. Ana","email":"ana@uni.test","services":[{"service_id":"101","quantity":2}]}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), "INQ-2026-0001")
	assert.Equal(t, 1, inquiries.submitted)
}

func TestMalformedJSONIsInvalidRequest(t *testing.T) {
	s := newTestServer(t, testDeps{})

	resp := doRequest(s, http.MethodPost, "/portal/quotations/preview", "", `{"lines":`)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_request", payload.Errors[0].Code)
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	s := newTestServer(t, testDeps{})

	cases := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "unknown", token: "bogus"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(s, http.MethodGet, "/admin/quotations/7/summary", tc.token, "")
			require.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Equal(t, "unauthorized", decodeError(t, resp).Type)
		})
	}
}

func TestAdminRoutesEnforceRole(t *testing.T) {
	s := newTestServer(t, testDeps{})

	resp := doRequest(s, http.MethodPost, "/admin/quotations/7/approve", staffToken, "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = doRequest(s, http.MethodGet, "/admin/quotations/7/summary", staffToken, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":"900"`)
}

func TestQuotationSummaryRendersHTML(t *testing.T) {
	s := newTestServer(t, testDeps{})

	req := httptest.NewRequest(http.MethodGet, "/admin/quotations/7/summary", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Accept", "text/html")
	resp := httptest.NewRecorder()
	s.Engine().ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<section>summary 7</section>", resp.Body.String())
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		errType  string
		wantCode string
	}{
		{name: "transition", err: quotationdomain.ErrInvalidTransition, status: http.StatusConflict, errType: "conflict"},
		{name: "not editable", err: fmt.Errorf("approve: %w", quotationdomain.ErrNotEditable), status: http.StatusConflict, errType: "conflict"},
		{name: "not found", err: quotationdomain.ErrNotFound, status: http.StatusNotFound, errType: "not_found"},
		{name: "no billable lines", err: quotationdomain.ErrNoBillableLines, status: http.StatusBadRequest, errType: "validation_error", wantCode: "no_billable_lines"},
		{name: "unknown service", err: fmt.Errorf("line 2: %w", lineitem.ErrUnknownService), status: http.StatusBadRequest, errType: "validation_error", wantCode: "unknown_service"},
		{name: "page token", err: fmt.Errorf("list: %w", pagination.ErrInvalidPageToken), status: http.StatusBadRequest, errType: "validation_error", wantCode: "invalid_page_token"},
		{name: "unexpected", err: errors.New("db exploded"), status: http.StatusInternalServerError, errType: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, testDeps{quotations: &fakeQuotationService{approveErr: tc.err}})

			resp := doRequest(s, http.MethodPost, "/admin/quotations/7/approve", adminToken, `{"notes":"ok"}`)

			require.Equal(t, tc.status, resp.Code)
			payload := decodeError(t, resp)
			assert.Equal(t, tc.errType, payload.Type)
			assert.NotContains(t, resp.Body.String(), "db exploded")
			if tc.wantCode != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.wantCode, payload.Errors[0].Code)
			}
		})
	}
}

func TestApproveAcceptsEmptyBody(t *testing.T) {
	s := newTestServer(t, testDeps{})

	resp := doRequest(s, http.MethodPost, "/admin/quotations/7/approve", adminToken, "")

	require.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimitRejectsWithRetryAfter(t *testing.T) {
	limiter := &fakeLimiter{result: ratelimit.Result{Allowed: false, Limit: 10, Remaining: 0, RetryAfter: 1500 * time.Millisecond}}
	inquiries := &fakeInquiryService{}
	s := newTestServer(t, testDeps{limiter: limiter, inquiries: inquiries})

	resp := doRequest(s, http.MethodPost, "/portal/inquiries", "",
		`{"contact_name":"Dr. Ana","email":"ana@uni.test","services":[{"service_id":"101","quantity":2}]}`)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "2", resp.Header().Get("Retry-After"))
	assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "rate_limited", decodeError(t, resp).Type)
	assert.Zero(t, inquiries.submitted)
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "portal.inquiry:192.0.2.1", limiter.keys[0])
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	inquiries := &fakeInquiryService{}
	s := newTestServer(t, testDeps{limiter: limiter, inquiries: inquiries})

	resp := doRequest(s, http.MethodPost, "/portal/inquiries", "",
		`{"contact_name":"Dr. Ana","email":"ana@uni.test","services":[{"service_id":"101","quantity":2}]}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, 1, inquiries.submitted)
}

func TestLoginFailureIsAudited(t *testing.T) {
	audit := &fakeAuditService{}
	s := newTestServer(t, testDeps{
		auth:  &fakeAuthService{loginErr: authdomain.ErrInvalidCredentials},
		audit: audit,
	})

	resp := doRequest(s, http.MethodPost, "/auth/login", "", `{"email":"Admin@Lab.test","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "admin_user.login_failed", audit.entries[0].action)
}

func TestLoginSuccessIsAudited(t *testing.T) {
	audit := &fakeAuditService{}
	s := newTestServer(t, testDeps{audit: audit})

	resp := doRequest(s, http.MethodPost, "/auth/login", "", `{"email":"admin@lab.test","password":"secret-pass"}`)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), adminToken)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "admin_user.login", audit.entries[0].action)
	assert.Equal(t, string(auditdomain.ActorTypeAdmin), audit.entries[0].actorType)
}

func TestExportServicesSendsWorkbook(t *testing.T) {
	s := newTestServer(t, testDeps{})

	resp := doRequest(s, http.MethodGet, "/admin/services/export", adminToken, "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, xlsxContentType, resp.Header().Get("Content-Type"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "service-catalog.xlsx")
	assert.Equal(t, "PK-xlsx", resp.Body.String())
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	s := newTestServer(t, testDeps{})

	resp := doRequest(s, http.MethodGet, "/nope", "", "")

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}
