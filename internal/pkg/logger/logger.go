// Package logger provides the console's structured logging built on top of Uber's Zap.
// It creates the process logger, derives component loggers, and provides the HTTP
// middleware that logs every console request.
package logger

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// Logger wraps the zap.Logger to provide additional logging functionality.
type Logger struct {
	*zap.Logger
}

// newLogger initializes a new Logger instance using the production configuration of Zap.
// In case of an error during creation, it logs the error using the standard log package.
func newLogger() *Logger {
	customLog, err := zap.NewProduction()
	if err != nil {
		log.Println(err)
	}
	return &Logger{Logger: customLog}
}

// CreateLogger creates and configures a Logger with the specified log level.
func CreateLogger(level string) (customLog *Logger, err error) {
	log := newLogger()
	defer log.Sync()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return log, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return log, err
	}

	log.Logger = zl
	return log, nil
}

// Nop returns a Logger that discards everything. Components fall back to it
// when they are constructed without a logger.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component derives a logger tagged with the component name and extra fields.
func (log *Logger) Component(name string, fields ...zap.Field) *Logger {
	if log == nil {
		return Nop()
	}
	return &Logger{Logger: log.Logger.With(append([]zap.Field{zap.String("component", name)}, fields...)...)}
}

// WithLogging returns HTTP middleware that logs incoming console requests with
// method, URI, status code, duration, response size and request id.
func (log *Logger) WithLogging() func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()
			defer func() {
				log.Info("served",
					zap.String("method", r.Method),
					zap.String("uri", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(t1)),
					zap.Int("size", ww.BytesWritten()),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			h.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
