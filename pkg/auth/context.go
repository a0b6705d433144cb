package auth

import (
	"context"
	"errors"
	"strings"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const buyerKey contextKey = "buyer"

// ErrUnauthenticated is returned when the request carries no buyer identity.
// Handlers should return 401 when this error occurs.
var ErrUnauthenticated = errors.New("authentication required")

// Buyer is the authenticated identity placing orders.
type Buyer struct {
	ID   string
	Name string
}

// BuyerFromCtx extracts the authenticated buyer from the request context.
// Returns ErrUnauthenticated if no buyer with a non-empty ID is set.
func BuyerFromCtx(ctx context.Context) (Buyer, error) {
	buyer, ok := ctx.Value(buyerKey).(Buyer)
	if !ok || strings.TrimSpace(buyer.ID) == "" {
		return Buyer{}, ErrUnauthenticated
	}
	return buyer, nil
}

// WithBuyer returns a new context with the given buyer attached.
// Used by authentication middleware after validating the session.
func WithBuyer(ctx context.Context, buyer Buyer) context.Context {
	return context.WithValue(ctx, buyerKey, buyer)
}
