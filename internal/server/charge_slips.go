package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	chargeslipdomain "github.com/smallbiznis/seqdesk/internal/chargeslip/domain"
)

func (s *Server) CreateChargeSlip(c *gin.Context) {
	var req chargeslipdomain.CreateChargeSlipRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.chargeSlipSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) CreateChargeSlipFromQuotation(c *gin.Context) {
	var req chargeslipdomain.FromQuotationRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.chargeSlipSvc.CreateFromQuotation(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListChargeSlips(c *gin.Context) {
	var query struct {
		listQuery
		ClientID    string `form:"client_id"`
		QuotationID string `form:"quotation_id"`
		Status      string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.chargeSlipSvc.List(c.Request.Context(), chargeslipdomain.ListChargeSlipRequest{
		PageToken:   strings.TrimSpace(query.PageToken),
		PageSize:    query.PageSize,
		ClientID:    strings.TrimSpace(query.ClientID),
		QuotationID: strings.TrimSpace(query.QuotationID),
		Status:      strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.ChargeSlips, "page_info": resp.PageInfo})
}

func (s *Server) GetChargeSlip(c *gin.Context) {
	resp, err := s.chargeSlipSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkChargeSlipPaid(c *gin.Context) {
	var req chargeslipdomain.MarkPaidRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	resp, err := s.chargeSlipSvc.MarkPaid(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VoidChargeSlip(c *gin.Context) {
	var req chargeslipdomain.VoidRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.chargeSlipSvc.Void(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RenderChargeSlipPDF(c *gin.Context) {
	resp, err := s.chargeSlipSvc.RenderPDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
