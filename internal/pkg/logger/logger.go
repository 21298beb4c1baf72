package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	entry *logrus.Entry
}

type Fields map[string]interface{}

type LogConfig struct {
	Level  string
	Format string
	Output string

	// File rotation settings, used when Output is a file path.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(config LogConfig) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}
	base.SetLevel(level)

	switch config.Format {
	case "json", "":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	var output io.Writer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output = &lumberjack.Logger{
			Filename:   config.Output,
			MaxSize:    orDefault(config.MaxSizeMB, 100),
			MaxBackups: orDefault(config.MaxBackups, 5),
			MaxAge:     orDefault(config.MaxAgeDays, 30),
			Compress:   true,
		}
	}
	base.SetOutput(output)

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func (log *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: log.entry.WithFields(logrus.Fields(fields))}
}

func (log *Logger) WithError(err error) *Logger {
	return &Logger{entry: log.entry.WithError(err)}
}

func (log *Logger) Debug(msg string, keysAndValues ...interface{}) {
	log.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (log *Logger) Info(msg string, keysAndValues ...interface{}) {
	log.entry.WithFields(toFields(keysAndValues)).Info(msg)
}

func (log *Logger) Warn(msg string, keysAndValues ...interface{}) {
	log.entry.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (log *Logger) Error(msg string, keysAndValues ...interface{}) {
	log.entry.WithFields(toFields(keysAndValues)).Error(msg)
}

// LogService records one collaborator round trip (gemini, redis, vector).
func (log *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := log.entry.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if err != nil {
		entry.WithError(err).Error("service call failed")
		return
	}
	entry.Info("service call completed")
}

// LogAgent records one specialist-agent operation within a session.
func (log *Logger) LogAgent(sessionID, agent, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := log.entry.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"agent":       agent,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if err != nil {
		entry.WithError(err).Error("agent operation failed")
		return
	}
	entry.Info("agent operation completed")
}

// LogSession records a session lifecycle event.
func (log *Logger) LogSession(sessionID, userID, event string, duration time.Duration, err error) {
	entry := log.entry.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"user_id":     userID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("session event failed")
		return
	}
	entry.Info("session event")
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
