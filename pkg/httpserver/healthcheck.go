package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Check probes one dependency.
type Check func(context.Context) error

// HealthCheckHandler reports liveness and readiness as JSON.
// Without checks it always answers 200 {"status":"ok"}. With checks, each
// one runs with a 2s budget; any failure turns the answer into 503 and marks
// that dependency "unavailable".
func HealthCheckHandler(log *slog.Logger, checks map[string]Check) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]any{"status": "ok"}
		if len(names) > 0 {
			results := make(map[string]string, len(names))
			for _, name := range names {
				if err := checks[name](ctx); err != nil {
					log.WarnContext(ctx, "readiness check failed",
						slog.String("dependency", name), logger.Error(err))
					results[name] = "unavailable"
					status = http.StatusServiceUnavailable
					report["status"] = "degraded"
					continue
				}
				results[name] = "ok"
			}
			report["checks"] = results
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}
