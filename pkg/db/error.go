package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	switch {
	// PostgreSQL (23505)
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	// MySQL (1062)
	case strings.Contains(msg, "Error 1062"):
		return true
	// SQLite (2067)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}

	return false
}

func IsForeignKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "violates foreign key constraint") ||
		strings.Contains(msg, "Error 1451") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed")
}

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"server closed the connection",
	"could not serialize access", // postgres 40001
	"deadlock detected",          // postgres 40P01
	"Error 1213",                 // mysql deadlock
	"database is locked",         // sqlite busy
}

// IsTransientErr reports whether retrying the same statement may succeed.
func IsTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
