package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/seqdesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/seqdesk/internal/auth/domain"
)

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) || errors.Is(err, authdomain.ErrUserDisabled) {
			_ = s.auditSvc.AuditLog(c.Request.Context(), string(auditdomain.ActorTypePortal), nil, "admin_user.login_failed", "admin_user", nil, map[string]any{
				"email": email,
			})
		}
		AbortWithError(c, err)
		return
	}

	userID := result.User.ID.String()
	_ = s.auditSvc.AuditLog(c.Request.Context(), string(auditdomain.ActorTypeAdmin), &userID, "admin_user.login", "admin_user", &userID, nil)

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) Me(c *gin.Context) {
	user, err := s.authSvc.CurrentUser(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) ChangePassword(c *gin.Context) {
	var req authdomain.ChangePasswordRequest
	if !s.bindJSON(c, &req) {
		return
	}

	if err := s.authSvc.ChangePassword(c.Request.Context(), req.Current, req.Next); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CreateAdminUser(c *gin.Context) {
	var req authdomain.CreateUserRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.authSvc.CreateUser(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}
