package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// slowQueryThreshold marks the point where an index or queue query gets a
// warn-level log line. Claim transactions and index upserts should stay well
// under it; anything slower usually means the media index needs a vacuum.
const slowQueryThreshold = 200 * time.Millisecond

// queryLogger routes GORM's internal messages (statements, slow queries,
// errors) through the shared zap logger. gorm.ErrRecordNotFound stays silent:
// the repositories translate it to ErrNotFound, so it is an application
// condition rather than a database failure.
type queryLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

// newQueryLogger builds the GORM logger bridge. gormlogger.Silent disables
// all output (the seed tool uses this); gormlogger.Info traces every
// statement. A zero level defaults to Warn: errors and slow queries only.
func newQueryLogger(log *zap.Logger, level gormlogger.LogLevel) gormlogger.Interface {
	if level == 0 {
		level = gormlogger.Warn
	}
	return &queryLogger{
		log:   log.Named("gorm").WithOptions(zap.AddCallerSkip(3)),
		level: level,
	}
}

// LogMode returns a copy at the given level. GORM calls this for per-session
// overrides such as db.Debug().
func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copy := *l
	copy.level = level
	return &copy
}

func (l *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs one executed statement with its latency and row count. Errors
// log at error level, statements over slowQueryThreshold at warn, and the
// rest at debug when full tracing is on.
func (l *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("query", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("caller", utils.FileWithLineNum()),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Error("query failed", append(fields, zap.Error(err))...)
	case elapsed > slowQueryThreshold:
		l.log.Warn("slow query", fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("query", fields...)
	}
}
