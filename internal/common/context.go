package common

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyCorrelationID contextKey = "correlation_id"
	ContextKeyPrincipal     contextKey = "principal"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Role   constants.Role
}

func (p Principal) IsAdmin() bool { return p.Role == constants.RoleAdmin }

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// CorrelationIDFromContext extracts the correlation ID from context
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromContext returns the caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}
