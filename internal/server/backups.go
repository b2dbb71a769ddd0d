package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	backupdomain "github.com/smallbiznis/seqdesk/internal/backup/domain"
)

func (s *Server) RunBackup(c *gin.Context) {
	run, err := s.backupSvc.Run(c.Request.Context(), backupdomain.TriggerManual)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": run})
}

func (s *Server) ListBackups(c *gin.Context) {
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.backupSvc.List(c.Request.Context(), backupdomain.ListBackupRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Runs, "page_info": resp.PageInfo})
}
