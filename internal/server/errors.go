package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/smallbiznis/autotrade/internal/errors"
)

var (
	ErrInvalidRequest = ierr.NewError("invalid request body").Mark(ierr.ErrValidation)
	ErrRouteNotFound  = ierr.NewError("route not found").Mark(ierr.ErrNotFound)
)

// ErrorHandlingMiddleware renders the last handler error as a failed Result
// when the handler has not written a response itself.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, Result{Success: false, Error: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidQueryError(field string) error {
	return ierr.NewErrorf("invalid %s", field).Mark(ierr.ErrValidation)
}

func mapError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal server error"
	}
	status := ierr.HTTPStatusFromErr(err)
	message := ierr.Sanitize(ierr.Message(err))
	if message == "" {
		message = http.StatusText(status)
	}
	return status, message
}

func classifyErrorForLog(err error) (string, string) {
	code := ierr.Code(err)
	switch ierr.HTTPStatusFromErr(err) {
	case http.StatusBadRequest:
		return "client_error", code
	case http.StatusNotFound:
		return "not_found", code
	case http.StatusConflict:
		return "conflict", code
	default:
		return "server_error", code
	}
}
