// Package transporthttp wires the HTTP surface: the public auth endpoint,
// the protected business endpoints, and the admin endpoints, each behind its
// own rate limit class.
package transporthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	permmw "kopguard/internal/permission/middleware"
	rlmw "kopguard/internal/ratelimit/middleware"
	"kopguard/internal/ratelimit/models"
	"kopguard/internal/ratelimit/suspicion"
	"kopguard/pkg/platform/httputil"
	"kopguard/pkg/platform/middleware/metadata"
	"kopguard/pkg/platform/middleware/request"
)

// Deps carries everything the router needs. All fields are required.
type Deps struct {
	Auth      *AuthHandler
	Business  *BusinessHandler
	Admin     *AdminHandler
	Gate      *permmw.Gate
	Sessions  *permmw.Authenticator
	RateLimit *rlmw.Middleware
	Suspicion *suspicion.Scanner
}

// NewRouter builds the full route tree. Request ID and client metadata run
// first so every later layer can key off them.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Suspicion.Scan)

		r.Group(func(r chi.Router) {
			r.Use(d.RateLimit.Limit(models.ClassAuth))
			r.Post("/auth/login", d.Auth.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.RateLimit.Limit(models.ClassGeneral))
			r.Use(d.Sessions.RequireAuth)

			d.Business.register(r, d.Gate)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.RateLimit.Limit(models.ClassUpload))
			r.Use(d.Sessions.RequireAuth)

			d.Business.registerUploads(r, d.Gate)
		})

		r.Group(func(r chi.Router) {
			r.Use(d.RateLimit.Limit(models.ClassAdmin))
			r.Use(d.Sessions.RequireAuth)

			d.Admin.register(r, d.Gate)
		})
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
