package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
	projectdomain "github.com/smallbiznis/seqdesk/internal/project/domain"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
)

func (s *Server) ListPortalServices(c *gin.Context) {
	items, err := s.catalogSvc.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) SubmitInquiry(c *gin.Context) {
	var req inquirydomain.SubmitRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.inquirySvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) TrackInquiry(c *gin.Context) {
	view, err := s.inquirySvc.Track(c.Request.Context(), strings.TrimSpace(c.Param("code")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) RegisterProject(c *gin.Context) {
	var req projectdomain.RegisterRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.projectSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// PreviewQuotation prices a basket without saving anything. Portal and admin
// screens share it so both show the same numbers.
func (s *Server) PreviewQuotation(c *gin.Context) {
	var req quotationdomain.PreviewRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.quotationSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
