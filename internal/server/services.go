package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/seqdesk/internal/catalog/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) ListServices(c *gin.Context) {
	var query struct {
		Category    string `form:"category"`
		ServiceType string `form:"service_type"`
		Active      string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	items, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListFilter{
		Category:    strings.TrimSpace(query.Category),
		ServiceType: strings.TrimSpace(query.ServiceType),
		Active:      active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateService(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if !s.bindJSON(c, &req) {
		return
	}

	item, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetService(c *gin.Context) {
	item, err := s.catalogSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateService(c *gin.Context) {
	var req catalogdomain.UpdateRequest
	if !s.bindJSON(c, &req) {
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	item, err := s.catalogSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ArchiveService(c *gin.Context) {
	item, err := s.catalogSvc.Archive(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ExportServices(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.catalogSvc.ExportXLSX(c.Request.Context(), &buf); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="service-catalog.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
