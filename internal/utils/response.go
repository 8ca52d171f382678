package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response defines the standard API response envelope.
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Warning *ErrorInfo  `json:"warning,omitempty"`
	Meta    Meta        `json:"meta"`
}

// ErrorInfo provides details for error and warning responses.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains request-scoped metadata.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Success writes a success response with the standard envelope.
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Meta:    newMeta(c),
	})
}

// SuccessWithWarning writes a success response that also carries a non-fatal notice,
// e.g. a write that landed in the local cache because the remote store was down.
func SuccessWithWarning(c *gin.Context, code int, message string, data interface{}, warnCode, warnMessage string) {
	c.JSON(code, Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Warning: &ErrorInfo{
			Code:    warnCode,
			Message: warnMessage,
		},
		Meta: newMeta(c),
	})
}

// Error writes an error response with provided API error code and message.
func Error(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, Response{
		Success: false,
		Code:    code,
		Message: message,
		Error: &ErrorInfo{
			Code:    errCode,
			Message: message,
		},
		Meta: newMeta(c),
	})
}

func newMeta(c *gin.Context) Meta {
	return Meta{
		RequestID: getRequestID(c),
		Timestamp: NowISO(),
	}
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}

// NowISO returns the current time in ISO 8601 format with BRT timezone.
func NowISO() string {
	brt := time.FixedZone("BRT", -3*3600)
	return time.Now().In(brt).Format(time.RFC3339)
}
