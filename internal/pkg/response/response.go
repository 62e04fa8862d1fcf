// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "authbridge/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format. Kind and Fields are set
// when the error is a structured auth error.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    xerrors.Kind      `json:"type,omitempty"`
	Fields  map[string]string `json:"errors,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error aborts the chain and sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		resp.Error = err.Error()
		var structured *xerrors.Error
		if errors.As(err, &structured) {
			resp.Kind = structured.Kind
			resp.Fields = structured.Fields
		}
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	c.JSON(code, resp)
}
