package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
	"github.com/smallbiznis/seqdesk/internal/authorization"
	obscontext "github.com/smallbiznis/seqdesk/internal/observability/context"
	obstracing "github.com/smallbiznis/seqdesk/internal/observability/tracing"
	"go.uber.org/zap"
)

const contextPrincipalKey = "principal"

// AdminAuthRequired resolves the bearer token into a principal and tags the
// request context with the admin actor.
func (s *Server) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeAdmin), principal.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

// PortalActor marks anonymous portal traffic so audit entries carry the
// caller's address.
func PortalActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypePortal), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// DocumentScope tags routes that act on a single document so the request
// log line and span carry its kind and id.
func DocumentScope(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			c.Set(obstracing.DocumentKindKey, kind)
			c.Set(obstracing.DocumentIDKey, id)
		}
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		err := s.authzSvc.Authorize(c.Request.Context(), authorization.Subject{
			UserID: principal.UserID.String(),
			Role:   string(principal.Role),
		}, object, action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit throttles a route per client IP. Limiter failures let the
// request through.
func (s *Server) RateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		result, err := s.limiter.Allow(c.Request.Context(), endpoint+":"+c.ClientIP())
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		s.metrics.RecordRateLimit(endpoint, result.Allowed)

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	return principal, ok && principal != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
