package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotationdomain "github.com/smallbiznis/seqdesk/internal/quotation/domain"
)

func (s *Server) CreateQuotation(c *gin.Context) {
	var req quotationdomain.CreateQuotationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.quotationSvc.CreateDraft(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListQuotations(c *gin.Context) {
	var query struct {
		listQuery
		ClientID  string `form:"client_id"`
		ProjectID string `form:"project_id"`
		Status    string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotationSvc.List(c.Request.Context(), quotationdomain.ListQuotationRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		ClientID:  strings.TrimSpace(query.ClientID),
		ProjectID: strings.TrimSpace(query.ProjectID),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Quotations, "page_info": resp.PageInfo})
}

func (s *Server) GetQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReplaceQuotationLines(c *gin.Context) {
	var req quotationdomain.ReplaceLinesRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.quotationSvc.ReplaceLines(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Submit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveQuotation(c *gin.Context) {
	var req quotationdomain.DecisionRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	resp, err := s.quotationSvc.Approve(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectQuotation(c *gin.Context) {
	var req quotationdomain.DecisionRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	resp, err := s.quotationSvc.Reject(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetQuotationSummary returns the computed totals as JSON, or the rendered
// summary panel when the caller asks for HTML.
func (s *Server) GetQuotationSummary(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		html, err := s.quotationSvc.RenderSummary(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}

	summary, err := s.quotationSvc.Summary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) RenderQuotationPDF(c *gin.Context) {
	resp, err := s.quotationSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) SendQuotation(c *gin.Context) {
	resp, err := s.quotationSvc.Send(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
