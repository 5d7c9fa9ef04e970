package http

import (
	"context"

	"tripplanner/internal/observability"
)

// appendRequestID adds the request id to attrs for loggers that do not read
// it from the context themselves.
func appendRequestID(ctx context.Context, attrs []any) []any {
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, "request_id", rid)
	}
	return attrs
}
