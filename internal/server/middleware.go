package server

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the back-office user performing the request.
const HeaderUserID = "X-User-Id"

// actor returns the explicit value when set, otherwise the request's user header.
func actor(c *gin.Context, explicit *string) *string {
	if explicit != nil && strings.TrimSpace(*explicit) != "" {
		return explicit
	}
	if user := strings.TrimSpace(c.GetHeader(HeaderUserID)); user != "" {
		return &user
	}
	return explicit
}

// tagResource stores the route's :id on the request context so log lines
// and spans carry the invoice or payment being worked on.
func tagResource(with func(context.Context, string) context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			c.Request = c.Request.WithContext(with(c.Request.Context(), id))
		}
		c.Next()
	}
}
