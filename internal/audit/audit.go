// Package audit records poster portal mutations as structured log events,
// giving moderators a trail of who changed which poster and when.
package audit

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// EventType represents the type of audit event
type EventType string

const (
	EventPosterCreated  EventType = "poster_created"
	EventPosterStopped  EventType = "poster_stopped"
	EventPosterResumed  EventType = "poster_resumed"
	EventPosterImageSet EventType = "poster_image_set"
)

// Event represents one audit log event
type Event struct {
	Type    EventType
	Creator int64
	Poster  int64
	Kind    string
	URL     string
}

// Config holds audit logger configuration
type Config struct {
	// Enabled enables/disables audit logging
	Enabled bool `yaml:"enabled"`

	// Output specifies where to write logs
	// "stdout", "stderr", or a file path
	Output string `yaml:"output"`

	// Format specifies log format: "json" or "text"
	Format string `yaml:"format"`
}

// DefaultConfig returns the default audit configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Output:  "stdout",
		Format:  "json",
	}
}

// Logger handles audit logging
type Logger struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	closer  io.Closer
	enabled bool
}

// NewLogger creates a new audit logger
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{enabled: cfg.Enabled}

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		output = f
		l.closer = f
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	l.logger = slog.New(handler)

	return l, nil
}

// NewTestLogger creates an enabled logger writing to w, for tests
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{
		enabled: true,
		logger:  slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Log logs an audit event
func (l *Logger) Log(event Event) {
	l.mu.RLock()
	enabled := l.enabled
	logger := l.logger
	l.mu.RUnlock()

	if !enabled || logger == nil {
		return
	}

	attrs := []any{
		slog.String("type", string(event.Type)),
		slog.Int64("creator", event.Creator),
		slog.Int64("poster", event.Poster),
	}
	if event.Kind != "" {
		attrs = append(attrs, slog.String("kind", event.Kind))
	}
	if event.URL != "" {
		attrs = append(attrs, slog.String("url", event.URL))
	}

	logger.Info("audit", attrs...)
}

// SetEnabled enables or disables audit logging at runtime
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Close releases the underlying file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
