package httpapi

import (
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/notifykit/binder"
	"github.com/dmitrymomot/notifykit/handler"
	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

const (
	roleAdmin  = "admin"
	roleSystem = "system"
)

var (
	bindQuery = []handler.Bind{binder.BindQuery()}
	bindPath  = []handler.Bind{binder.Path(chi.URLParam)}
)

// Context carries the verified caller.
type Context struct {
	handler.Context
	Claims jwt.Claims
}

func newContext(w http.ResponseWriter, r *http.Request) Context {
	claims, _ := jwt.GetClaims(r.Context())
	return Context{Context: handler.NewContext(w, r), Claims: claims}
}

// route wraps a typed handler with the API context, binders and the logging
// error handler.
func route[R any](a *api, h handler.HandlerFunc[Context, R], binders []handler.Bind, decorators ...handler.Decorator[Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithContextFactory[Context, R](newContext),
		handler.WithErrorHandler[Context, R](handler.NewErrorHandler[Context](a.logger)),
		handler.WithBinders[Context, R](binders...),
		handler.WithDecorators(decorators...),
	)
}

func requireRole[R any](roles ...string) handler.Decorator[Context, R] {
	return func(next handler.HandlerFunc[Context, R]) handler.HandlerFunc[Context, R] {
		return func(ctx Context, req R) handler.Response {
			if !slices.Contains(roles, ctx.Claims.Role) {
				return handler.JSONError(handler.ErrForbidden)
			}
			return next(ctx, req)
		}
	}
}

// rateLimited spends one token per call from the caller's bucket. It fails
// open when the limiter store is unavailable.
func rateLimited[R any](a *api, scope string) handler.Decorator[Context, R] {
	return func(next handler.HandlerFunc[Context, R]) handler.HandlerFunc[Context, R] {
		if a.deps.Limiter == nil {
			return next
		}
		return func(ctx Context, req R) handler.Response {
			res, err := a.deps.Limiter.Allow(ctx, scope+":"+ctx.Claims.UserID)
			if err != nil {
				a.logger.LogAttrs(ctx, slog.LevelWarn, "rate limiter unavailable",
					logger.Component("httpapi"),
					logger.Error(err),
				)
				return next(ctx, req)
			}
			h := ctx.ResponseWriter().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed() {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter().Seconds()))))
				return handler.JSONError(handler.ErrTooManyRequests)
			}
			return next(ctx, req)
		}
	}
}
