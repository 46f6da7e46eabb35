package jwt

import "context"

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var (
	jwtContextKey    = &contextKey{name: "jwt"}
	claimsContextKey = &contextKey{name: "jwt_claims"}
)

// SetToken sets the JWT token string in the context.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, jwtContextKey, token)
}

// SetClaims sets verified claims in the context.
func SetClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// GetToken returns the JWT token string from the context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(jwtContextKey).(string)
	return token, ok
}

// GetClaims returns the verified claims stored by the middleware.
func GetClaims(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(Claims)
	return claims, ok
}
