package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	"github.com/smallbiznis/seqdesk/internal/authorization"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
	clientdomain "github.com/smallbiznis/seqdesk/internal/client/domain"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	"github.com/smallbiznis/seqdesk/internal/lineitem"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	"github.com/smallbiznis/seqdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
	"github.com/smallbiznis/seqdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authdomain.ErrUserDisabled):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authdomain.ErrSecretNotSet):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a type and code without
// leaking error text into log fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrs = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	pricing.ErrInvalidModel,
	lineitem.ErrUnknownService,
	lineitem.ErrInactiveService,
	lineitem.ErrNoLines,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidTier,
	clientdomain.ErrInvalidName,
	clientdomain.ErrInvalidEmail,
	clientdomain.ErrInvalidID,
	projectdomain.ErrInvalidID,
	projectdomain.ErrInvalidTitle,
	projectdomain.ErrInvalidMember,
	projectdomain.ErrInvalidSampleCount,
	projectdomain.ErrInvalidStatus,
	inquirydomain.ErrInvalidID,
	inquirydomain.ErrInvalidContact,
	inquirydomain.ErrInvalidEmail,
	inquirydomain.ErrNoServices,
	inquirydomain.ErrInvalidStatus,
	inquirydomain.ErrInvalidTrackingCode,
	quotationdomain.ErrInvalidID,
	quotationdomain.ErrInvalidClient,
	quotationdomain.ErrInvalidProject,
	quotationdomain.ErrInvalidStatus,
	quotationdomain.ErrNoBillableLines,
	quotationdomain.ErrNoRecipients,
	chargeslipdomain.ErrInvalidID,
	chargeslipdomain.ErrInvalidClient,
	chargeslipdomain.ErrInvalidProject,
	chargeslipdomain.ErrInvalidStatus,
	chargeslipdomain.ErrNoBillableLines,
	chargeslipdomain.ErrVoidReasonRequired,
	backupdomain.ErrInvalidTrigger,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	authdomain.ErrInvalidRole,
	authdomain.ErrWeakPassword,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
}

func isValidationError(err error) bool {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authdomain.ErrUnauthenticated),
		errors.Is(err, authorization.ErrInvalidActor):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, catalogdomain.ErrDuplicateCode),
		errors.Is(err, clientdomain.ErrDuplicateEmail),
		errors.Is(err, projectdomain.ErrInvalidTransition),
		errors.Is(err, inquirydomain.ErrInvalidTransition),
		errors.Is(err, quotationdomain.ErrInvalidTransition),
		errors.Is(err, quotationdomain.ErrNotEditable),
		errors.Is(err, chargeslipdomain.ErrInvalidTransition),
		errors.Is(err, chargeslipdomain.ErrQuotationNotIssued),
		errors.Is(err, chargeslipdomain.ErrAlreadyBilled),
		errors.Is(err, backupdomain.ErrAlreadyRunning):
		return true
	default:
		return false
	}
}

// conflictMessage keeps the domain code for conflicts the caller can act on.
func conflictMessage(err error) string {
	for _, target := range []error{
		quotationdomain.ErrNotEditable,
		chargeslipdomain.ErrQuotationNotIssued,
		chargeslipdomain.ErrAlreadyBilled,
		backupdomain.ErrAlreadyRunning,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, inquirydomain.ErrNotFound),
		errors.Is(err, quotationdomain.ErrNotFound),
		errors.Is(err, chargeslipdomain.ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unknown_service", "inactive_service":
		return "service is not available"
	case "no_billable_lines", "no_lines", "no_services_requested":
		return "at least one line with a positive quantity is required"
	default:
		return "invalid value"
	}
}
