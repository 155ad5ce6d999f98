package instrument

import "context"

type correlationIDContextKey struct{}

// SetCorrelationID stores the request correlation ID in the context.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey{}, cID)
}

// GetCorrelationID returns the correlation ID stored in the context, if any.
func GetCorrelationID(ctx context.Context) string {
	cID, ok := ctx.Value(correlationIDContextKey{}).(string)
	if !ok {
		return ""
	}

	return cID
}
