package web

import (
	"context"

	"github.com/artpar/usagemeter/ports"
)

type ctxKey string

const (
	identityKey ctxKey = "identity"
	tokenKey    ctxKey = "token"
)

// withIdentity adds the resolved identity and its raw bearer token to the
// request context. The token is kept only for collaborator passthrough.
func withIdentity(ctx context.Context, id ports.Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return context.WithValue(ctx, tokenKey, token)
}

// identityFrom retrieves the resolved identity from context.
func identityFrom(ctx context.Context) (ports.Identity, bool) {
	id, ok := ctx.Value(identityKey).(ports.Identity)
	return id, ok
}

// tokenFrom retrieves the raw bearer token from context.
func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
