package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// Init builds the process-wide logger. Levels follow zap's names
// (debug, info, warn, error, fatal, panic); anything unparseable falls
// back to info. The default encoder is production JSON; debug switches
// to the colored console encoder. Every entry is tagged with the
// service name so relay lines are filterable in shared log streams.
func Init(logLevel string) error {
	logLevel = strings.ToLower(strings.TrimSpace(logLevel))
	if logLevel == "" {
		logLevel = "info"
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"

	if level == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var err error
	Logger, err = config.Build(zap.Fields(zap.String("service", "eventhos-relay")))
	if err != nil {
		return err
	}

	return nil
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Canonical field constructors. Every package logging an event, a
// contract, or a dispatch run uses these so the field names stay
// identical across the HTTP handlers, the queue consumer, and the
// orchestrator.

// EventID identifies the event an entry belongs to.
func EventID(id int64) zap.Field {
	return zap.Int64("event_id", id)
}

// ContractID identifies the contract an entry belongs to.
func ContractID(id int64) zap.Field {
	return zap.Int64("contract_id", id)
}

// Contract carries the human-readable contract identifier.
func Contract(identifier string) zap.Field {
	return zap.String("contract", identifier)
}

// CorrelationID ties log lines to one dispatch run.
func CorrelationID(id string) zap.Field {
	return zap.String("correlation_id", id)
}

// Queue names the AMQP queue an entry relates to.
func Queue(name string) zap.Field {
	return zap.String("queue", name)
}

// Info logs an info message with optional fields
func Info(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Info(msg, fields...)
	}
}

// Error logs an error message with optional fields
func Error(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Error(msg, fields...)
	}
}

// Warn logs a warning message with optional fields
func Warn(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Warn(msg, fields...)
	}
}

// Debug logs a debug message with optional fields
func Debug(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Debug(msg, fields...)
	}
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Fatal(msg, fields...)
	}
}
