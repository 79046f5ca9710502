package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	customlogger "guild-warden/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger routes gorm output into the application logger
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// NewCustomGormLogger maps the application log level onto a gorm log level
func NewCustomGormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel

	switch customlogger.ParseLevel(level) {
	case customlogger.LevelDebug, customlogger.LevelInfo:
		// gorm's Info level traces every statement; the helpers below log those at DEBUG
		logLevel = logger.Info
	case customlogger.LevelWarning:
		logLevel = logger.Warn
	default:
		logLevel = logger.Error
	}

	return &CustomGormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

// LogMode sets the log level
func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace logs SQL execution
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	var source string
	if !l.SkipCallerLookup {
		source = utils.FileWithLineNum()
	}
	prefix := fmt.Sprintf("[%.3fms]", float64(elapsed.Nanoseconds())/1e6)
	if source != "" {
		prefix += " [" + source + "]"
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		// unique violations are expected by the case sequencer and retried there
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			customlogger.Debugf("%s %s; duplicate key", prefix, sql)
			return
		}
		customlogger.Errorf("%s %s; error=%v", prefix, sql, err)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= logger.Warn:
		customlogger.Warningf("%s %s; SLOW SQL >= %v, rows=%v", prefix, sql, l.SlowThreshold, rows)
	case l.LogLevel == logger.Info:
		customlogger.Debugf("%s %s; rows=%v", prefix, sql, rows)
	}
}
