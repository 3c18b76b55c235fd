// Package logger is the gateway's structured logger on top of logrus.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const (
	levelEnvVar = "LOG_LEVEL"

	rotateMaxSizeMB  = 100
	rotateMaxBackups = 5
)

type Fields map[string]interface{}

// Log is the process logger. Entries built from it carry a component field.
type Log struct {
	*logrus.Logger

	mu   sync.Mutex
	file io.Closer
}

type Entry struct {
	*logrus.Entry
}

var (
	globalLogger = Logger()

	warnCount  atomic.Int64
	errorCount atomic.Int64
)

// Logger builds a JSON logger writing to stdout. LOG_LEVEL selects the level,
// info by default.
func Logger() *Log {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(newFormatter("json"))
	l.AddHook(callerHook{})

	lvl, err := parseLevel(os.Getenv(levelEnvVar))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &Log{Logger: l}
}

// GetLogger returns the process wide logger.
func GetLogger() *Log {
	return globalLogger
}

func parseLevel(level string) (logrus.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level '%s'", level)
	}
	return lvl, nil
}

func shortCaller(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// newFormatter returns nil for unknown formats.
func newFormatter(format string) logrus.Formatter {
	switch format {
	case "json", "":
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: shortCaller,
		}
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: shortCaller,
		}
	}
	return nil
}

// Configure applies the logging section of the gateway config. LOG_LEVEL
// wins over level. Any output other than stdout or stderr is a file path,
// rotated by lumberjack when maxAge (days) is positive.
func (l *Log) Configure(level string, format string, output string, maxAge int) error {
	if env := os.Getenv(levelEnvVar); env != "" {
		level = env
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	formatter := newFormatter(format)
	if formatter == nil {
		return fmt.Errorf("invalid log format '%s'", format)
	}

	w, closer, err := openOutput(output, maxAge)
	if err != nil {
		return err
	}

	l.SetLevel(lvl)
	l.SetReportCaller(true)
	l.SetFormatter(formatter)
	l.swapOutput(w, closer)
	return nil
}

func openOutput(output string, maxAge int) (io.Writer, io.Closer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if maxAge > 0 {
		rotated := &lumberjack.Logger{
			Filename:   output,
			MaxAge:     maxAge,
			MaxSize:    rotateMaxSizeMB,
			MaxBackups: rotateMaxBackups,
			Compress:   true,
		}
		return rotated, rotated, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file '%s': %w", output, err)
	}
	return file, file, nil
}

// swapOutput installs w and closes the file opened by a previous Configure.
func (l *Log) swapOutput(w io.Writer, closer io.Closer) {
	l.mu.Lock()
	previous := l.file
	l.file = closer
	l.mu.Unlock()

	l.Logger.SetOutput(w)
	if previous != nil {
		_ = previous.Close()
	}
}

// SetOutput redirects the logger, e.g. to a buffer in tests.
func (l *Log) SetOutput(output io.Writer) {
	l.swapOutput(output, nil)
}

func envFields(envs []string) logrus.Fields {
	fields := make(logrus.Fields, len(envs))
	for _, env := range envs {
		fields[env] = os.Getenv(env)
	}
	return fields
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

// WithEnv records the current value of each named environment variable.
func (l *Log) WithEnv(envs ...string) *Entry {
	return &Entry{Entry: l.Logger.WithFields(envFields(envs))}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func (e *Entry) WithEnv(envs ...string) *Entry {
	return &Entry{Entry: e.Entry.WithFields(envFields(envs))}
}

func (e *Entry) Debug(args ...interface{}) { e.Entry.Debug(args...) }

func (e *Entry) Info(args ...interface{}) { e.Entry.Info(args...) }

func (e *Entry) Warn(args ...interface{}) {
	warnCount.Add(1)
	e.Entry.Warn(args...)
}

func (e *Entry) Error(args ...interface{}) {
	errorCount.Add(1)
	e.Entry.Error(args...)
}

// Counts returns the number of warnings and errors logged through Entry
// since start.
func Counts() (warns, errs int64) {
	return warnCount.Load(), errorCount.Load()
}

// LogPerformanceEntry records how long an operation took, at debug level.
func LogPerformanceEntry(entry *Entry, component string, operation string, duration time.Duration, fields Fields) {
	out := make(Fields, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["duration_ms"] = float64(duration.Nanoseconds()) / 1e6
	out["operation"] = operation

	entry.WithFields(out).WithComponent(component).Debug("performance metric")
}

// LogDataFlowEntry records how many records moved from source to destination.
func LogDataFlowEntry(entry *Entry, source string, destination string, recordCount int, dataType string) {
	entry.WithFields(Fields{
		"source":       source,
		"destination":  destination,
		"record_count": recordCount,
		"data_type":    dataType,
		"flow_type":    "data_flow",
	}).Debug("data flow metric")
}
