// Package handler exposes the storage core over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/docuvault/internal/database"
	"github.com/weiwangfds/docuvault/internal/response"
	documentservice "github.com/weiwangfds/docuvault/internal/service/document"
	quotaservice "github.com/weiwangfds/docuvault/internal/service/quota"
	statsservice "github.com/weiwangfds/docuvault/internal/service/stats"
)

// DocumentHandler handles document upload, retrieval and lifecycle requests.
// Authentication lives in front of this service; the owner is taken from the
// X-Owner-ID header the gateway injects.
type DocumentHandler struct {
	documents documentservice.DocumentService
	quotas    quotaservice.QuotaService
	stats     statsservice.StatsService
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(
	documents documentservice.DocumentService,
	quotas quotaservice.QuotaService,
	stats statsservice.StatsService,
) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		quotas:    quotas,
		stats:     stats,
	}
}

func ownerID(c *gin.Context) string {
	return c.GetHeader("X-Owner-ID")
}

// Upload accepts a multipart upload and submits it to the vault.
func (h *DocumentHandler) Upload(c *gin.Context) {
	owner := ownerID(c)
	if owner == "" {
		response.BadRequest(c, "missing owner")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "no file selected")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.InternalServerError(c, "failed to open uploaded file")
		return
	}
	defer src.Close()

	req := documentservice.SubmitRequest{
		OwnerID:          owner,
		FileName:         file.Filename,
		Title:            c.PostForm("title"),
		DeclaredCategory: database.FileCategory(c.PostForm("category")),
		Data:             src,
	}
	if catID := c.PostForm("category_id"); catID != "" {
		req.CategoryID = &catID
	}

	doc, err := h.documents.SubmitDocument(req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithMessage(c, "document submitted", doc)
}

// List pages through the owner's documents.
func (h *DocumentHandler) List(c *gin.Context) {
	owner := ownerID(c)
	if owner == "" {
		response.BadRequest(c, "missing owner")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	docs, total, err := h.documents.ListDocuments(owner, page, pageSize)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithPage(c, docs, total, page, pageSize)
}

// Get returns a document's metadata.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, doc)
}

// Download streams the document's original bytes, decompressing as needed.
func (h *DocumentHandler) Download(c *gin.Context) {
	docID := c.Param("id")
	doc, err := h.documents.GetDocument(docID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	data, err := h.documents.GetDocumentBytes(docID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.OriginalName+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Status returns the document's compression status.
func (h *DocumentHandler) Status(c *gin.Context) {
	status, err := h.documents.GetCompressionStatus(c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, gin.H{"status": status})
}

// Favorite toggles the favorite flag.
func (h *DocumentHandler) Favorite(c *gin.Context) {
	var body struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if err := h.documents.SetFavorite(c.Param("id"), body.Favorite); err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete removes a document and everything lifecycle-bound to it.
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.DeleteDocument(c.Param("id")); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "document deleted", nil)
}

// Quota returns the owner's storage accounting.
func (h *DocumentHandler) Quota(c *gin.Context) {
	owner := ownerID(c)
	if owner == "" {
		response.BadRequest(c, "missing owner")
		return
	}
	q, err := h.quotas.EnsureQuota(owner)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, q)
}

// RecalculateQuota rebuilds the owner's storage accounting from the
// document set.
func (h *DocumentHandler) RecalculateQuota(c *gin.Context) {
	owner := ownerID(c)
	if owner == "" {
		response.BadRequest(c, "missing owner")
		return
	}
	q, err := h.quotas.Recalculate(owner)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "quota recalculated", q)
}

// CompressionStats lists the owner's compression aggregates.
func (h *DocumentHandler) CompressionStats(c *gin.Context) {
	owner := ownerID(c)
	if owner == "" {
		response.BadRequest(c, "missing owner")
		return
	}
	rows, err := h.stats.List(owner)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, rows)
}
