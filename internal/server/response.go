package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
)

// Result is the envelope every API response is wrapped in.
type Result struct {
	Success    bool             `json:"success"`
	Data       any              `json:"data,omitempty"`
	Pagination *pagination.Info `json:"pagination,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Result{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Result{Success: true, Data: data})
}

func respondList(c *gin.Context, data any, info pagination.Info) {
	c.JSON(http.StatusOK, Result{Success: true, Data: data, Pagination: &info})
}
