package observability

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// TraceHeader carries the trace id between services and back to the caller.
const TraceHeader = "x-trace-id"

type traceKey struct{}

// WithTraceID returns a context carrying the trace id. The id travels as an
// explicit context value down the call chain, including into queued jobs.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID extracts the trace id from the context, or "unknown".
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// TraceMiddleware ensures every request has a stable trace id for end-to-end
// log correlation. Reuses the upstream header when present, otherwise
// generates one, and echoes it back to the caller.
func TraceMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceHeader, traceID)
		c.SetUserContext(WithTraceID(c.UserContext(), traceID))
		return c.Next()
	}
}
