package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/xopay/notify-service/internal/config"
	"github.com/xopay/notify-service/internal/metrics"
	"github.com/xopay/notify-service/internal/transport/http/handlers"
	authmw "github.com/xopay/notify-service/internal/transport/http/middleware"
)

func New(
	h *handlers.RulesHandler,
	z *handlers.HealthHandler,
	auth *authmw.AuthMiddleware,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(authmw.RequestID)
	r.Use(authmw.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(authmw.AccessLog)

	if cfg.RLEnabled {
		r.Use(httprate.LimitByIP(cfg.RLIPLimit, cfg.RLIPWindow))
	}

	r.Get("/healthz", z.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/notify/"+cfg.Env, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Require("admin", "system"))
			r.Get("/notifications", h.List)
			r.Post("/notifications", h.Create)
			r.Get("/notifications/{notify_id}", h.Get)
			r.Put("/notifications/{notify_id}", h.Update)
			r.Delete("/notifications/{notify_id}", h.Delete)
		})
	})

	return r
}
