package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

// Fiber locals shared between middleware and handlers.
const (
	LocalRequestID = "requestid"
	LocalUserID    = "userID"
	LocalUsername  = "username"
	LocalTraceID   = "traceID"
)

type scopeKey struct{}

// RequestScope identifies the request a log line belongs to.
type RequestScope struct {
	RequestID string
	TraceID   string
	UserID    uint
	Username  string
}

// ScopeFrom returns the scope stored on ctx, or the zero scope.
func ScopeFrom(ctx context.Context) RequestScope {
	s, _ := ctx.Value(scopeKey{}).(RequestScope)
	return s
}

func withScope(ctx context.Context, edit func(*RequestScope)) context.Context {
	s := ScopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithRequestID records the request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *RequestScope) { s.RequestID = id })
}

// WithTraceID records the trace id on ctx.
func WithTraceID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *RequestScope) { s.TraceID = id })
}

// WithUser records the signed-in author on ctx.
func WithUser(ctx context.Context, id uint, username string) context.Context {
	return withScope(ctx, func(s *RequestScope) {
		s.UserID = id
		s.Username = username
	})
}

func (s RequestScope) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 4)
	if s.RequestID != "" {
		out = append(out, slog.String("request_id", s.RequestID))
	}
	if s.TraceID != "" {
		out = append(out, slog.String("trace_id", s.TraceID))
	}
	if s.UserID != 0 {
		out = append(out, slog.Any("user_id", s.UserID))
	}
	if s.Username != "" {
		out = append(out, slog.String("username", s.Username))
	}
	return out
}

// scopeHandler appends the request scope of the context to every record.
type scopeHandler struct {
	slog.Handler
}

func (h scopeHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(ScopeFrom(ctx).attrs()...)
	return h.Handler.Handle(ctx, r)
}

func (h scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopeHandler{h.Handler.WithAttrs(attrs)}
}

func (h scopeHandler) WithGroup(name string) slog.Handler {
	return scopeHandler{h.Handler.WithGroup(name)}
}

// NewLogger writes JSON in production and text elsewhere.
func NewLogger(env string, w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if env := strings.ToLower(env); env == "production" || env == "prod" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(scopeHandler{h})
}

func levelFromEnv(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"), os.Stdout, levelFromEnv(os.Getenv("LOG_LEVEL")))
}

// ContextMiddleware copies the request id, trace id and author from Fiber
// locals onto the user context so service code logs with them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals(LocalRequestID).(string); ok && rid != "" {
			ctx = WithRequestID(ctx, rid)
		}
		if tid, ok := c.Locals(LocalTraceID).(string); ok && tid != "" {
			ctx = WithTraceID(ctx, tid)
		}
		if uid, ok := UserID(c); ok {
			name, _ := c.Locals(LocalUsername).(string)
			ctx = WithUser(ctx, uid, name)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// requestLevel picks the level of the access log line: server errors are
// errors, throttled and rejected writes are warnings.
func requestLevel(status int, err error) slog.Level {
	switch {
	case err != nil, status >= fiber.StatusInternalServerError:
		return slog.LevelError
	case status == fiber.StatusTooManyRequests, status == fiber.StatusForbidden:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// StructuredLogger writes one access log line per request.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.IP()),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}
		if page := c.Query("page"); page != "" {
			attrs = append(attrs, slog.String("page", page))
		}
		if loc := c.GetRespHeader(fiber.HeaderLocation); loc != "" {
			attrs = append(attrs, slog.String("location", loc))
		}

		msg := "request processed"
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			msg = "request failed"
		} else if status >= fiber.StatusInternalServerError {
			msg = "request failed"
		}
		Logger.LogAttrs(c.UserContext(), requestLevel(status, err), msg, attrs...)
		return err
	}
}
