package event

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying id, typically the inbound HTTP request ID
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the correlation ID carried by ctx, or ""
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
