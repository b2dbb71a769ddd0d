package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger writes gorm statements through the request-scoped zap logger.
// Bound values are never logged; statements carry client contact data.
type GormLogger struct {
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

// NewGormLogger logs failures and slow statements in production. In
// development every statement is logged at debug level.
func NewGormLogger(development bool) *GormLogger {
	l := &GormLogger{level: gormlogger.Warn, slowQuery: 250 * time.Millisecond}
	if development {
		l.level = gormlogger.Info
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (l *GormLogger) printf(ctx context.Context, threshold gormlogger.LogLevel, lvl zapcore.Level, msg string, args []any) {
	if l.level < threshold {
		return
	}
	if ce := FromContext(ctx).Check(lvl, fmt.Sprintf(msg, args...)); ce != nil {
		ce.Write(zap.String("component", "gorm"))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var lvl zapcore.Level
	switch {
	case err != nil && isExpected(err):
		// Missing rows and unique conflicts are mapped to API errors upstream.
		if l.level < gormlogger.Info {
			return
		}
		lvl = zapcore.DebugLevel
	case err != nil:
		lvl = zapcore.ErrorLevel
	case l.slowQuery > 0 && elapsed > l.slowQuery:
		lvl = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		lvl = zapcore.DebugLevel
	default:
		return
	}

	ce := FromContext(ctx).Check(lvl, "gorm.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	verb, table := describeStatement(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("operation", verb),
		zap.String("table", table),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}
	if lvl >= zapcore.WarnLevel {
		fields = append(fields, zap.String("sql", strings.TrimSpace(sql)))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values from the statement text.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func isExpected(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// describeStatement returns the SQL verb and the first table it touches.
func describeStatement(sql string) (string, string) {
	tokens := strings.Fields(sql)
	verb, table := "OTHER", ""
	for i, tok := range tokens {
		upper := strings.ToUpper(strings.Trim(tok, "();"))
		switch upper {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if verb == "OTHER" {
				verb = upper
			}
			if upper == "UPDATE" && i+1 < len(tokens) && table == "" {
				table = tokens[i+1]
			}
		case "FROM", "INTO":
			if i+1 < len(tokens) && table == "" {
				table = tokens[i+1]
			}
		}
	}
	return verb, strings.Trim(table, "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
