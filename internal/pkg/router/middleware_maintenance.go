package router

import (
	"net/http"
	"strconv"

	"github.com/samber/lo"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
)

const healthRoute = "/health"

// middlewareMaintenance rejects traffic with 503 while app.maintenance.enabled
// is set, or for routes listed in app.maintenance.endpoints. Settings are read
// on every request so a config file reload applies without a restart. The
// health route is never blocked.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !underMaintenance(cfg, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			if secs := cfg.GetInt("app.maintenance.retry_after_seconds"); secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
		})
	}
}

func underMaintenance(cfg config.Config, route string) bool {
	if route == healthRoute {
		return false
	}
	if cfg.GetBool("app.maintenance.enabled") {
		return true
	}
	return lo.Contains(cfg.GetArray("app.maintenance.endpoints"), route)
}
