package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inquirydomain "github.com/smallbiznis/seqdesk/internal/inquiry/domain"
)

func (s *Server) ListInquiries(c *gin.Context) {
	var query struct {
		listQuery
		Status string `form:"status"`
		Email  string `form:"email"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inquirySvc.List(c.Request.Context(), inquirydomain.ListInquiryRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		Status:    strings.TrimSpace(query.Status),
		Email:     strings.TrimSpace(query.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Inquiries, "page_info": resp.PageInfo})
}

func (s *Server) GetInquiry(c *gin.Context) {
	resp, err := s.inquirySvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReviewInquiry(c *gin.Context) {
	var req inquirydomain.ReviewRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.inquirySvc.Review(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConvertInquiry(c *gin.Context) {
	var req inquirydomain.ConvertRequest
	if !s.bindJSON(c, &req) {
		return
	}

	resp, err := s.inquirySvc.Convert(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
