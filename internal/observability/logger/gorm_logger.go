package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormConfig controls which statements reach the application log.
type GormConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// GormConfigFor maps the application LOG_LEVEL onto gorm's levels. Statements
// are only traced at debug; info keeps slow queries and failures.
func GormConfigFor(logLevel string, slow time.Duration) GormConfig {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	level := gormlogger.Warn
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = gormlogger.Info
	case "error", "dpanic", "panic", "fatal":
		level = gormlogger.Error
	case "silent", "off":
		level = gormlogger.Silent
	}
	return GormConfig{Level: level, SlowThreshold: slow}
}

// GormLogger sends gorm output through zap with the request's correlation
// fields. Record-not-found is never logged: repositories return nil for it.
type GormLogger struct {
	base *zap.Logger
	cfg  GormConfig
}

// NewGormLogger logs through base, or the global logger when base is nil.
func NewGormLogger(base *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{base: base, cfg: cfg}
}

func (l *GormLogger) logger(ctx context.Context) *zap.Logger {
	base := l.base
	if base == nil {
		base = zap.L()
	}
	return WithContext(ctx, base).With(zap.String("component", "gorm"))
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.cfg.Level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Info {
		l.logger(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Warn {
		l.logger(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.cfg.Level >= gormlogger.Error {
		l.logger(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := elapsed > l.cfg.SlowThreshold
	switch {
	case err != nil && l.cfg.Level >= gormlogger.Error:
	case slow && l.cfg.Level >= gormlogger.Warn:
	case l.cfg.Level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("table", tableFromSQL(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	log := l.logger(ctx)
	switch {
	case err != nil:
		log.Error("gorm.query failed", append(fields, zap.Error(err))...)
	case slow:
		log.Warn("gorm.query slow", append(fields, zap.Duration("threshold", l.cfg.SlowThreshold))...)
	default:
		log.Debug("gorm.query", fields...)
	}
}

// ParamsFilter drops bound values; they carry customer contact details.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch token = strings.Trim(token, "();"); token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		}
	}
	return "UNKNOWN"
}

// tableFromSQL picks the first of the service's tables the statement names.
func tableFromSQL(sql string) string {
	lower := strings.ToLower(sql)
	for _, table := range []string{"invoice_items", "invoices", "payments", "vehicles", "customers"} {
		if strings.Contains(lower, table) {
			return table
		}
	}
	return ""
}

var _ gormlogger.Interface = (*GormLogger)(nil)
