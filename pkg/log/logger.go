package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON records to stderr. Stdout carries protocol
// envelopes so is never written to.
//
// Each logger belongs to a subsystem. Records below the configured level are
// dropped, unless the logger's subsystem is enabled in which case every
// record is written.
type Logger interface {
	// WithSubsystem creates a new logger with the given subsystem.
	WithSubsystem(s string) Logger
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
}

type logger struct {
	// core writes every record it is given. Filtering is done by the logger
	// using minLevel.
	core zapcore.Core

	subsystem string
	minLevel  zapcore.Level

	level             zapcore.Level
	enabledSubsystems []string
}

// NewLogger creates a logger writing to stderr that filters records by the
// given level and enabled subsystems.
func NewLogger(lvl string, enabledSubsystems []string) (Logger, error) {
	sink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return newLogger(lvl, enabledSubsystems, sink)
}

func newLogger(
	lvl string,
	enabledSubsystems []string,
	sink zapcore.WriteSyncer,
) (Logger, error) {
	level, err := parseLevel(lvl)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.NameKey = "subsystem"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(
		"2006-01-02T15:04:05.999Z07:00",
	)

	l := &logger{
		core: zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			sink,
			zapcore.DebugLevel,
		),
		level:             level,
		enabledSubsystems: enabledSubsystems,
	}
	l.setSubsystem("main")
	return l, nil
}

func (l *logger) WithSubsystem(s string) Logger {
	if s == l.subsystem {
		return l
	}

	clone := *l
	clone.setSubsystem(s)
	return &clone
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}

	clone := *l
	clone.core = l.core.With(fields)
	return &clone
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.write(zapcore.DebugLevel, msg, fields)
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	l.write(zapcore.InfoLevel, msg, fields)
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.write(zapcore.WarnLevel, msg, fields)
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	l.write(zapcore.ErrorLevel, msg, fields)
}

func (l *logger) Sync() error {
	return l.core.Sync()
}

func (l *logger) setSubsystem(s string) {
	l.subsystem = s
	l.minLevel = l.level
	for _, enabled := range l.enabledSubsystems {
		if enabled == s {
			l.minLevel = zapcore.DebugLevel
			break
		}
	}
}

func (l *logger) write(lvl zapcore.Level, msg string, fields []zap.Field) {
	if lvl < l.minLevel {
		return
	}

	ent := zapcore.Entry{
		LoggerName: l.subsystem,
		Time:       time.Now(),
		Level:      lvl,
		Message:    msg,
	}
	if ce := l.core.Check(ent, nil); ce != nil {
		ce.Write(fields...)
	}
}

type nopLogger struct{}

// NewNopLogger returns a logger that discards every record.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (l nopLogger) WithSubsystem(_ string) Logger {
	return l
}

func (l nopLogger) With(_ ...zap.Field) Logger {
	return l
}

func (nopLogger) Debug(_ string, _ ...zap.Field) {}

func (nopLogger) Info(_ string, _ ...zap.Field) {}

func (nopLogger) Warn(_ string, _ ...zap.Field) {}

func (nopLogger) Error(_ string, _ ...zap.Field) {}

func (nopLogger) Sync() error {
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unsupported level: %s", s)
	}
}
