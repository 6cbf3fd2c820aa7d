package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/docuvault/internal/response"
	documentservice "github.com/weiwangfds/docuvault/internal/service/document"
)

// MaintenanceHandler exposes the periodic cleanup jobs for operational use.
// The same sweeps also run on timers in main; the endpoints let operators
// force a pass without waiting.
type MaintenanceHandler struct {
	documents documentservice.DocumentService
}

// NewMaintenanceHandler creates a maintenance handler.
func NewMaintenanceHandler(documents documentservice.DocumentService) *MaintenanceHandler {
	return &MaintenanceHandler{documents: documents}
}

// SweepBackups removes backups whose retention window has passed.
func (h *MaintenanceHandler) SweepBackups(c *gin.Context) {
	removed, err := h.documents.SweepExpiredBackups(time.Now())
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}

// SweepCache removes decompression cache entries past their TTL.
func (h *MaintenanceHandler) SweepCache(c *gin.Context) {
	removed, err := h.documents.SweepExpiredCache(time.Now())
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, gin.H{"removed": removed})
}
