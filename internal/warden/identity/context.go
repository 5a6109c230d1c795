package identity

import (
	"context"

	"github.com/aussiebroadwan/warden/internal/warden/domain"
)

type ctxKey struct{}

// WithContext attaches a resolved identity so downstream code (the login
// audit trail) can record it without resolving again.
func WithContext(ctx context.Context, id domain.ClientIdentity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (domain.ClientIdentity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.ClientIdentity)
	if !ok || id.IsZero() {
		return domain.ClientIdentity{}, false
	}
	return id, true
}
