package dbutils

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type loggerKey struct{}

var nopLogger = zap.NewNop()

//ContextWithLogger returns a context carrying l. Helpers called with the context log their queries and chunks
//to l at debug level.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

//LoggerFrom returns the logger carried by ctx, or a no-op logger.
func LoggerFrom(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nopLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return nopLogger
}

//GormLogger sends gorm's log output to a zap logger. Use it with gorm.DB.SetLogger; SQL statements are only
//printed by gorm when LogMode(true) is set.
type GormLogger struct {
	l *zap.Logger
}

//NewGormLogger creates a GormLogger writing to l
func NewGormLogger(l *zap.Logger) GormLogger {
	return GormLogger{l: l}
}

//Print implements gorm's logger interface. gorm passes the level ("sql" or "log") and the caller first.
func (g GormLogger) Print(v ...interface{}) {
	if len(v) < 2 {
		g.l.Info(fmt.Sprint(v...))
		return
	}

	source := zap.Any("source", v[1])
	if v[0] == "sql" && len(v) >= 6 {
		fields := []zap.Field{source, zap.Any("vars", v[4])}
		if d, ok := v[2].(time.Duration); ok {
			fields = append(fields, zap.Duration("duration", d))
		}
		if rows, ok := v[5].(int64); ok {
			fields = append(fields, zap.Int64("rows", rows))
		}
		sql, _ := v[3].(string)
		g.l.Debug(sql, fields...)
		return
	}

	for _, m := range v[2:] {
		if err, ok := m.(error); ok {
			g.l.Error("gorm error", source, zap.Error(err))
			return
		}
	}
	g.l.Info(fmt.Sprint(v[2:]...), source)
}
