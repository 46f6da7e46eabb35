package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc pulls a raw token out of a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

type middlewareConfig struct {
	extract TokenExtractorFunc
	skip    func(*http.Request) bool
	reject  func(http.ResponseWriter, *http.Request, error)
}

type MiddlewareOption func(*middlewareConfig)

// WithExtractor replaces the default bearer header extractor.
func WithExtractor(ex TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) { c.extract = ex }
}

// WithSkip lets matching requests through without a token.
func WithSkip(skip func(*http.Request) bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.skip = skip }
}

// WithErrorResponder renders rejected requests. The default writes a plain
// 401.
func WithErrorResponder(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(c *middlewareConfig) { c.reject = fn }
}

// Middleware verifies the request token and stores Claims and the raw token
// in the request context.
func Middleware(service *Service, opts ...MiddlewareOption) func(next http.Handler) http.Handler {
	cfg := middlewareConfig{
		extract: BearerTokenExtractor,
		reject: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.skip != nil && cfg.skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			claims, token, err := Authenticate(r, service, cfg.extract)
			if err != nil {
				cfg.reject(w, r, err)
				return
			}
			ctx := SetClaims(SetToken(r.Context(), token), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate extracts a token with extractor and verifies it.
func Authenticate(r *http.Request, service *Service, extractor TokenExtractorFunc) (Claims, string, error) {
	token, err := extractor(r)
	if err != nil {
		return Claims{}, "", err
	}
	claims, err := service.Verify(token)
	if err != nil {
		return Claims{}, "", err
	}
	return claims, token, nil
}

// BearerTokenExtractor reads "Authorization: Bearer <token>". The scheme is
// case-insensitive.
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

// QueryTokenExtractor reads the token from a URL query parameter. Browsers
// cannot set headers on a websocket handshake, so the upgrade endpoint
// accepts it here.
func QueryTokenExtractor(paramName string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		token := r.URL.Query().Get(paramName)
		if token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	}
}

// ChainExtractors returns the first token any extractor finds.
func ChainExtractors(extractors ...TokenExtractorFunc) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		for _, ex := range extractors {
			if token, err := ex(r); err == nil && token != "" {
				return token, nil
			}
		}
		return "", ErrInvalidToken
	}
}
