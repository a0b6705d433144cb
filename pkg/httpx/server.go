package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// RequestIDHeader carries the client-generated idempotency key of a command.
// It is distinct from X-Request-Id, which chi assigns per HTTP request for tracing.
const RequestIDHeader = "x-requestid"

// Router defaults applied when the matching ServerConfig field is zero.
const (
	defaultRateLimitPerMinute = 100
	defaultMaxBodyBytes       = 1 << 20
	defaultHandlerTimeout     = 30 * time.Second
)

// ServerConfig configures NewRouter. Zero limits take the package defaults.
type ServerConfig struct {
	ServiceName        string
	IsDevelopment      bool
	CORSAllowedOrigins string // see CORSMiddleware

	RateLimitPerMinute int           // per client IP
	MaxBodyBytes       int64         // request body cap
	HandlerTimeout     time.Duration // deadline on the request context
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = defaultRateLimitPerMinute
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = defaultHandlerTimeout
	}
	return c
}

// NewRouter returns a chi.Mux wired with the standard middleware stack,
// outermost first:
//
//	recovery, sentry, RequestID, otel, logger, RealIP, rate limit,
//	CORS, body limit, timeout, security headers
//
// Recovery sits outside sentry so panics sentry re-raises still become a 500.
// otel runs before the logger so request logs carry trace_id and span_id.
func NewRouter(
	cfg ServerConfig,
	loggerMiddleware func(http.Handler) http.Handler,
	recoveryMiddleware func(http.Handler) http.Handler,
	sentryMiddleware func(http.Handler) http.Handler,
	otelMiddleware func(http.Handler) http.Handler,
) *chi.Mux {
	cfg = cfg.withDefaults()

	r := chi.NewRouter()
	r.Use(
		recoveryMiddleware,
		sentryMiddleware,
		middleware.RequestID,
		otelMiddleware,
		loggerMiddleware,
		middleware.RealIP,
		httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute),
		CORSMiddleware(cfg.CORSAllowedOrigins),
		RequestBodyLimit(cfg.MaxBodyBytes),
		middleware.Timeout(cfg.HandlerTimeout),
		securityHeaders(cfg.IsDevelopment),
	)
	return r
}

// securityHeaders sets HSTS, CSP, frame and referrer policies. The API serves
// JSON only, so the CSP forbids everything but same-origin swagger assets.
func securityHeaders(isDevelopment bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		STSSeconds:            63072000,
		STSIncludeSubdomains:  true,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		IsDevelopment:         isDevelopment,
	}).Handler
}

// CORSMiddleware allows browser clients from allowedOrigins, a
// comma-separated list, to post orders. An empty list or "*" allows any
// origin, which is only meant for development.
func CORSMiddleware(allowedOrigins string) func(http.Handler) http.Handler {
	origins := strings.FieldsFunc(allowedOrigins, func(r rune) bool { return r == ',' || r == ' ' })
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", RequestIDHeader},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// RequestBodyLimit caps the request body at maxBytes. Reads past the cap fail
// with *http.MaxBytesError; validator.ValidateRequest turns that into a 413.
func RequestBodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// NewServer wraps handler in an *http.Server whose write timeout outlasts the
// router's handler timeout, so timed-out handlers still get to answer.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      defaultHandlerTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
