package httpapi

import (
	"context"
	"net/http"

	"chathub/domain"
)

type contextKey int

const identityKey contextKey = iota

func withIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// identityFrom reads the identity placed by the authentication middleware.
// Handlers are only reachable through that middleware, so the value is
// always present.
func identityFrom(r *http.Request) domain.Identity {
	return r.Context().Value(identityKey).(domain.Identity)
}
