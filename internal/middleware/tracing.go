package middleware

import (
	"strconv"

	"yatube/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HeaderTraceID carries the trace id back to the client.
const HeaderTraceID = "X-Trace-ID"

// routeAttributes tags a span with the blog objects a route addresses.
func routeAttributes(c *fiber.Ctx) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id, err := strconv.ParseUint(c.Params("id"), 10, 64); err == nil {
		attrs = append(attrs, attribute.Int64("yatube.post_id", int64(id)))
	}
	if slug := c.Params("slug"); slug != "" {
		attrs = append(attrs, attribute.String("yatube.group", slug))
	}
	if name := c.Params("username"); name != "" {
		attrs = append(attrs, attribute.String("yatube.profile", name))
	}
	if page := c.Query("page"); page != "" {
		attrs = append(attrs, attribute.String("yatube.page", page))
	}
	return attrs
}

// TracingMiddleware opens a server span per request, continuing any trace
// the caller propagated, and answers with the trace id in X-Trace-ID.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := observability.Tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
				attribute.String("client.address", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals(LocalTraceID, traceID)
		c.Set(HeaderTraceID, traceID)
		c.SetUserContext(WithTraceID(ctx, traceID))

		err := c.Next()

		// Route params are only known once the router has matched.
		if route := c.Route(); route != nil && route.Path != "" {
			span.SetName(c.Method() + " " + route.Path)
			span.SetAttributes(attribute.String("http.route", route.Path))
		}
		span.SetAttributes(routeAttributes(c)...)

		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if uid, ok := UserID(c); ok {
			span.SetAttributes(attribute.Int64("yatube.user_id", int64(uid)))
		}
		if rid, ok := c.Locals(LocalRequestID).(string); ok {
			span.SetAttributes(attribute.String("yatube.request_id", rid))
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
		return err
	}
}
