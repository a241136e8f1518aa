package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// Logger writes one JSON object per event.  Every entry carries the
// service name, hostname, the action being performed and the kiosk
// session it belongs to.
type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

// NewLogger logs to stdout at debug level.
func NewLogger(service string) *Logger {
	return New(service, os.Stdout, slog.LevelDebug)
}

// New logs to w at the given minimum level.
func New(service string, w io.Writer, level slog.Level) *Logger {
	hostname, _ := os.Hostname()

	handler := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))

	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  handler,
	}
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *Logger {
	return New("test", io.Discard, slog.LevelError+1)
}

func (l *Logger) log(level slog.Level, action, sessionID, message string, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
		slog.String("session_id", sessionID),
	}, extra...)
	l.handler.LogAttrs(context.TODO(), level, message, attrs...)
}

func (l *Logger) Info(action, sessionID, message string) {
	l.log(slog.LevelInfo, action, sessionID, message)
}

func (l *Logger) Debug(action, sessionID, message string) {
	l.log(slog.LevelDebug, action, sessionID, message)
}

func (l *Logger) Warn(action, sessionID, message string) {
	l.log(slog.LevelWarn, action, sessionID, message)
}

func (l *Logger) Error(action, sessionID, message string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.log(slog.LevelError, action, sessionID, message,
		slog.Group("error",
			slog.String("msg", msg),
			slog.String("stack", string(debug.Stack())),
		),
	)
}
