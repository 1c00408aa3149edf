// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process for the Distributor process.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/httpserver"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify/asynqnotify"
	"github.com/fairyhunter13/promo-harvester/internal/adapter/observability"
	"github.com/fairyhunter13/promo-harvester/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the Distributor's HTTP handler with every
// middleware and route. games names the catalog the admin dashboard
// snapshot reports inventory depth for.
func BuildRouter(cfg config.Config, srv *httpserver.Server, notifyQueue *asynqnotify.Queue, correlator *notify.ForwardCorrelator, games []string) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Rate limit the mutating issuance endpoint; admin routes are gated
	// separately below.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Post("/v1/issue", srv.IssueHandler())
	})

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	if cfg.AdminEnabled() {
		admin, err := httpserver.NewAdminServer(cfg, srv, notifyQueue, correlator, games)
		if err == nil {
			r.Post("/admin/token", admin.AdminTokenHandler())
			r.Get("/admin/api/status", admin.AdminStatusHandler())
			r.Get("/admin/api/stats", admin.AdminStatsHandler())
			r.Get("/admin/api/users", admin.AdminUsersListHandler())
			r.Get("/admin/api/users/{id}", admin.AdminUserDetailHandler())
			r.Post("/admin/api/users/{id}/flag", admin.AdminSetFlagHandler())
			r.Post("/admin/api/notify/user", admin.AdminNotifyUserHandler())
			r.Post("/admin/api/notify/broadcast", admin.AdminBroadcastHandler())
			r.Post("/admin/api/correlate", admin.AdminCorrelateHandler())
			r.Post("/admin/api/reply", admin.AdminReplyHandler())
		}
	}

	return httpserver.SecurityHeaders(r)
}
