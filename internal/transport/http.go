package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/auth"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/handler"
)

// Handlers groups everything mounted under /api.
type Handlers struct {
	Products *handler.ProductHandler
	Orders   *handler.OrderHandler
	Site     *handler.SiteHandler
	Upload   *handler.UploadHandler
	Payments *handler.PaymentHandler
	Auth     *handler.AuthHandler
	Admin    *handler.AdminHandler
}

func NewRouter(logger zerolog.Logger, authn *auth.Authenticator, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(middleware.RealIP)
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"Not found"}`)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(api chi.Router) {
		admin := authn.RequireAdmin
		h.Products.RegisterRoutes(api, admin)
		h.Orders.RegisterRoutes(api, admin)
		h.Site.RegisterRoutes(api, admin)
		h.Upload.RegisterRoutes(api, admin)
		h.Payments.RegisterRoutes(api)
		h.Auth.RegisterRoutes(api)
		h.Admin.RegisterRoutes(api, admin)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
