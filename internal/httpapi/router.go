// Package httpapi is the HTTP surface of the notification service: the
// websocket endpoint, the notification trigger and inbox API, the operator
// views of channels and the delivery log, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/binder"
	"github.com/dmitrymomot/notifykit/handler"
	"github.com/dmitrymomot/notifykit/internal/metrics"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

var ErrMissingDependency = errors.New("httpapi.missing_dependency")

// Service is the part of *fanout.Coordinator the API needs.
type Service interface {
	Notify(ctx context.Context, req fanout.Request) (*fanout.Summary, error)
	List(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Item, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, messageID string) error
}

type AuditLog interface {
	Query(ctx context.Context, c deliverylog.Criteria) ([]deliverylog.Entry, error)
}

type Deps struct {
	Auth    *jwt.Service
	Service Service
	Audit   AuditLog
	// Optional.
	Channels channels.Store
	Realtime http.Handler
	Pusher   fanout.Pusher
	Metrics  *metrics.Metrics
	// Limiter throttles notification triggers per caller.
	Limiter *ratelimiter.Bucket
	Health  map[string]httpserver.Check
}

type api struct {
	deps   Deps
	logger *slog.Logger
}

// NewRouter builds the chi router. Auth, Service and Audit are required.
func NewRouter(deps Deps, log *slog.Logger) (http.Handler, error) {
	switch {
	case deps.Auth == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("auth"))
	case deps.Service == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("service"))
	case deps.Audit == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("audit"))
	}
	if log == nil {
		log = slog.Default()
	}
	a := &api{deps: deps, logger: log}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.RealIP, middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.Get("/healthz", httpserver.HealthCheckHandler(log, deps.Health))
	if deps.Realtime != nil {
		r.Method(http.MethodGet, "/ws", deps.Realtime)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(jwt.Middleware(deps.Auth, jwt.WithErrorResponder(a.unauthorized)))

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", route(a, a.notify, []handler.Bind{binder.BindJSON(), binder.BindQuery()},
				requireRole[notifyRequest](roleAdmin, roleSystem),
				rateLimited[notifyRequest](a, "notify"),
			))
			r.Get("/", route(a, a.listNotifications, bindQuery))
			r.Get("/unread-count", route(a, a.unreadCount, nil))
			r.Post("/read-all", route(a, a.markAllRead, nil))
			r.Post("/{id}/read", route(a, a.markRead, bindPath))
			r.Delete("/{id}", route(a, a.deleteNotification, bindPath, requireRole[idRequest](roleAdmin)))
		})

		r.Get("/delivery-logs", route(a, a.deliveryLogs, bindQuery, requireRole[deliveryLogRequest](roleAdmin)))

		if deps.Channels != nil {
			r.Route("/channels", func(r chi.Router) {
				r.Get("/", route(a, a.listChannels, nil, requireRole[struct{}](roleAdmin)))
				r.Post("/", route(a, a.saveChannel, []handler.Bind{binder.BindJSON()}, requireRole[channelRequest](roleAdmin)))
				r.Delete("/{id}", route(a, a.deleteChannel, bindPath, requireRole[idRequest](roleAdmin)))
			})
		}
	})
	return r, nil
}

func (a *api) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.LogAttrs(r.Context(), slog.LevelDebug, "token rejected",
		logger.Component("httpapi"),
		logger.Error(err),
	)
	_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
}
