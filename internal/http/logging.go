package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// newRequestLogger logs one line per request through logger, skipping the
// given paths (health and metrics scrapes).
func newRequestLogger(logger *zap.Logger, ignoredPaths ...string) func(next http.Handler) http.Handler {
	ignored := make(map[string]struct{}, len(ignoredPaths))
	for _, p := range ignoredPaths {
		ignored[p] = struct{}{}
	}
	return middleware.RequestLogger(&selectiveLogFormatter{
		ignoredPaths: ignored,
		log:          logger,
	})
}

type selectiveLogFormatter struct {
	ignoredPaths map[string]struct{}
	log          *zap.Logger
}

func (f *selectiveLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	if _, ok := f.ignoredPaths[r.URL.Path]; ok {
		return noopLogEntry{}
	}
	return &zapLogEntry{log: f.log.With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)}
}

type zapLogEntry struct {
	log *zap.Logger
}

func (e *zapLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	fields := []zap.Field{zap.Int("status", status), zap.Int("bytes", bytes), zap.Duration("elapsed", elapsed)}
	if status >= http.StatusInternalServerError {
		e.log.Warn("request", fields...)
		return
	}
	e.log.Info("request", fields...)
}

func (e *zapLogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("panic in handler", zap.Any("panic", v), zap.ByteString("stack", stack))
}

type noopLogEntry struct{}

func (noopLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
}

func (noopLogEntry) Panic(v interface{}, stack []byte) {}
