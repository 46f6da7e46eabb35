package handler

import (
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// NewErrorHandler logs the error, at warn for client errors and error
// otherwise, and renders it as JSON.
func NewErrorHandler[C Context](log *slog.Logger) ErrorHandler[C] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx C, err error) {
		resp := JSONError(err)
		status, _ := classify(err)

		level := slog.LevelError
		if status < 500 {
			level = slog.LevelWarn
		}
		r := ctx.Request()
		log.LogAttrs(r.Context(), level, "request error",
			logger.Component("http"),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		if rerr := resp.Render(ctx.ResponseWriter(), r); rerr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "render error response",
				logger.Component("http"),
				logger.Error(rerr),
			)
		}
	}
}
