// Package logging provides structured application logging with
// correlation ID propagation through context.
package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplicationLogger defines the interface for structured application logging.
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

// Fields represents structured logging fields.
type Fields map[string]interface{}

// Config represents logger configuration.
type Config struct {
	Level  string
	Format string // json, text
	Output string // stdout, stderr
}

// Log level ordering for filtering.
var levelOrder = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// LogEntry represents the structure of JSON log entries.
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Component     string                 `json:"component,omitempty"`
	Operation     string                 `json:"operation,omitempty"`
	Duration      string                 `json:"duration,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// contextKey is the private type for context values owned by this package.
type contextKey string

// CorrelationIDKey is the context key carrying the request correlation ID.
const CorrelationIDKey contextKey = "correlation_id"

// applicationLoggerImpl implements ApplicationLogger.
type applicationLoggerImpl struct {
	config    Config
	component string
	writer    io.Writer
	mu        *sync.Mutex
}

// NewApplicationLogger creates a logger from the given configuration.
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	var writer io.Writer
	switch config.Output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		return nil, fmt.Errorf("unsupported log output: %s", config.Output)
	}

	return &applicationLoggerImpl{
		config: config,
		writer: writer,
		mu:     &sync.Mutex{},
	}, nil
}

// NewApplicationLoggerWithWriter creates a logger writing to the given
// writer. Intended for tests.
func NewApplicationLoggerWithWriter(config Config, w io.Writer) (ApplicationLogger, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return &applicationLoggerImpl{
		config: config,
		writer: w,
		mu:     &sync.Mutex{},
	}, nil
}

func validateConfig(config Config) error {
	level := strings.ToUpper(config.Level)
	if level != "" {
		if _, ok := levelOrder[level]; !ok {
			return fmt.Errorf("invalid log level: %s", config.Level)
		}
	}
	if config.Format != "" && config.Format != "json" && config.Format != "text" {
		return errors.New("log format must be json or text")
	}
	return nil
}

func (l *applicationLoggerImpl) shouldLog(level string) bool {
	configured := strings.ToUpper(l.config.Level)
	if configured == "" {
		configured = "INFO"
	}
	return levelOrder[level] >= levelOrder[configured]
}

// Debug logs a debug message.
func (l *applicationLoggerImpl) Debug(ctx context.Context, message string, fields Fields) {
	l.logEntry(ctx, "DEBUG", message, "", fields)
}

// Info logs an info message.
func (l *applicationLoggerImpl) Info(ctx context.Context, message string, fields Fields) {
	l.logEntry(ctx, "INFO", message, "", fields)
}

// Warn logs a warning message.
func (l *applicationLoggerImpl) Warn(ctx context.Context, message string, fields Fields) {
	l.logEntry(ctx, "WARN", message, "", fields)
}

// Error logs an error message.
func (l *applicationLoggerImpl) Error(ctx context.Context, message string, fields Fields) {
	l.logEntry(ctx, "ERROR", message, "", fields)
}

// ErrorWithError logs an error message with an attached error object.
func (l *applicationLoggerImpl) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.logEntry(ctx, "ERROR", message, errStr, fields)
}

// LogPerformance logs a timed operation at info level.
func (l *applicationLoggerImpl) LogPerformance(
	ctx context.Context,
	operation string,
	duration time.Duration,
	fields Fields,
) {
	if !l.shouldLog("INFO") {
		return
	}
	entry := l.newEntry(ctx, "INFO", "Operation completed", "", fields)
	entry.Operation = operation
	entry.Duration = duration.String()
	l.write(entry)
}

// WithComponent returns a child logger tagged with the component name.
func (l *applicationLoggerImpl) WithComponent(component string) ApplicationLogger {
	return &applicationLoggerImpl{
		config:    l.config,
		component: component,
		writer:    l.writer,
		mu:        l.mu,
	}
}

func (l *applicationLoggerImpl) logEntry(ctx context.Context, level, message, errStr string, fields Fields) {
	if !l.shouldLog(level) {
		return
	}
	l.write(l.newEntry(ctx, level, message, errStr, fields))
}

func (l *applicationLoggerImpl) newEntry(
	ctx context.Context,
	level, message, errStr string,
	fields Fields,
) *LogEntry {
	entry := &LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Message:       message,
		CorrelationID: CorrelationIDFromContext(ctx),
		Component:     l.component,
		Error:         errStr,
	}
	if len(fields) > 0 {
		entry.Metadata = fields
	}
	return entry
}

func (l *applicationLoggerImpl) write(entry *LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config.Format == "text" {
		fmt.Fprintf(l.writer, "%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)
		if entry.Component != "" {
			fmt.Fprintf(l.writer, " component=%s", entry.Component)
		}
		if entry.Error != "" {
			fmt.Fprintf(l.writer, " error=%q", entry.Error)
		}
		for k, v := range entry.Metadata {
			fmt.Fprintf(l.writer, " %s=%v", k, v)
		}
		fmt.Fprintln(l.writer)
		return
	}

	_ = json.NewEncoder(l.writer).Encode(entry)
}

// WithCorrelationID returns a context carrying the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation ID, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// NewCorrelationID generates a fresh correlation ID.
func NewCorrelationID() string {
	return uuid.New().String()
}
