package logger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/masking"
)

// sensitiveKeys are attribute keys whose values are replaced with a masked
// token before a record is written. Call sites log buyers under "buyer_ref"
// with masking.Identifier already applied; these keys catch raw values.
var sensitiveKeys = map[string]bool{
	"buyer_id":             true,
	"user_id":              true,
	"card_number":          true,
	"card_security_number": true,
}

// Logger is the logging surface shared by the api, the worker and every
// service package. Prefer the Context variants inside request and message
// handling so trace and request ids reach the record.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	DebugContext(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
	// ToSlog exposes the handler chain to libraries that take *slog.Logger.
	ToSlog() *slog.Logger
}

// New writes JSON records to stdout at cfg.LogLevel. Records carry trace_id,
// span_id and request_id from the context, and values under buyer and card
// keys are masked.
func New(cfg *config.Config) Logger {
	return newLogger(os.Stdout, parseLevel(cfg.LogLevel))
}

// NewWriter is New with an explicit destination, for tests and tools that
// capture log output.
func NewWriter(w io.Writer, level string) Logger {
	return newLogger(w, parseLevel(level))
}

func newLogger(w io.Writer, level slog.Level) Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: maskSensitive}
	sl := slog.New(&traceHandler{slog.NewJSONHandler(w, opts)})
	return &slogLogger{Logger: sl}
}

func maskSensitive(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[a.Key] {
		return slog.String(a.Key, masking.Identifier(a.Value.String()))
	}
	return a
}

// slogLogger gets its logging methods from the embedded *slog.Logger; only
// With needs wrapping to keep the Logger return type.
type slogLogger struct {
	*slog.Logger
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{Logger: l.Logger.With(args...)}
}

func (l *slogLogger) ToSlog() *slog.Logger {
	return l.Logger
}

// traceHandler adds the active span's ids and chi's request id to each record.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{h.Handler.WithGroup(name)}
}

// clientRequestIDHeader is the idempotency key clients attach to commands.
const clientRequestIDHeader = "x-requestid"

// Middleware logs one line per request. 5xx responses log at Error and 4xx
// at Warn, so a rejected order is visible without debug logging.
func Middleware(log Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if id := r.Header.Get(clientRequestIDHeader); id != "" {
				args = append(args, "client_request_id", id)
			}

			switch {
			case status >= http.StatusInternalServerError:
				log.ErrorContext(r.Context(), "request", args...)
			case status >= http.StatusBadRequest:
				log.WarnContext(r.Context(), "request", args...)
			default:
				log.InfoContext(r.Context(), "request", args...)
			}
		})
	}
}

// Recovery turns a panic into a 500 JSON response and logs it with the stack.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(log Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Internal Server Error"}` + "\n"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// parseLevel accepts slog's level names in any case; anything else is info.
func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
