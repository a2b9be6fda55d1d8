// Package reqctx carries the per-request identity the authn collaborator
// populates (tenant, user, api_server, jwt_header_name) as an explicit
// context value, replacing the source's process-global request context
// (spec.md §9 design note: "do not reintroduce process-global mutable
// state").
package reqctx

import "context"

// Identity is the request-scoped caller identity.
type Identity struct {
	Tenant        string
	User          string
	APIServer     string
	JWTHeaderName string
}

type ctxKey struct{}

// With attaches an Identity to ctx.
func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From extracts the Identity attached by With. ok is false if none was set.
func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
