// Package response defines the unified JSON envelope for API responses.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/weiwangfds/docuvault/internal/errors"
)

// Response is the unified API response format. Code 0 means success.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// PageData is the payload shape for paginated listings.
type PageData struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// Success returns a success response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithMessage returns a success response with a custom message.
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithPage returns a paginated success response.
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, PageData{
		List:       list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Error returns an error response with an application error code.
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:      code,
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: time.Now().Unix(),
	})
}

// BadRequest returns a 400 response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, int(apperrors.ErrInvalidParams), message)
}

// NotFound returns a 404 response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, int(apperrors.ErrNotFound), message)
}

// InternalServerError returns a 500 response.
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, int(apperrors.ErrInternalServer), message)
}

// AppError maps an application error to the right HTTP status and envelope.
func AppError(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		InternalServerError(c, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch {
	case appErr.Code == apperrors.ErrNotFound:
		status = http.StatusNotFound
	case appErr.Code == apperrors.ErrInvalidParams:
		status = http.StatusBadRequest
	case appErr.Code == apperrors.ErrQuotaExceeded:
		status = http.StatusForbidden
	case apperrors.IsAdmission(err):
		status = http.StatusBadRequest
	case appErr.Code == apperrors.ErrCompressionInFlight:
		status = http.StatusConflict
	case apperrors.IsIntegrity(err):
		status = http.StatusInternalServerError
	}
	Error(c, status, int(appErr.Code), appErr.Message)
}

// getRequestID fetches the request ID set by middleware, minting one if the
// middleware did not run.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
