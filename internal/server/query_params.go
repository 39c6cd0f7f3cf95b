package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// timeRange reads <prefix>_from and <prefix>_to query parameters.
func timeRange(c *gin.Context, prefix string) (*time.Time, *time.Time, error) {
	from, err := parseOptionalTime(c.Query(prefix+"_from"), false)
	if err != nil {
		return nil, nil, invalidQueryError(prefix + "_from")
	}
	to, err := parseOptionalTime(c.Query(prefix+"_to"), true)
	if err != nil {
		return nil, nil, invalidQueryError(prefix + "_to")
	}
	return from, to, nil
}

func pageFromQuery(c *gin.Context) (pagination.Page, error) {
	var page pagination.Page
	if err := c.ShouldBindQuery(&page); err != nil {
		return pagination.Page{}, invalidQueryError("pagination")
	}
	return page, nil
}
