package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamhub/backend/internal/apperr"
	"github.com/streamhub/backend/internal/middleware"
	"github.com/streamhub/backend/internal/response"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger         *slog.Logger
	Users          UserStore
	Sessions       SessionManager
	Hasher         PasswordHasher
	Spool          FileSpool
	Uploader       AssetUploader
	Channels       ChannelService
	DB             Pinger
	Cookies        CookieConfig
	MaxUploadBytes int64
	CORSOrigin     string
	AuthLimiter    middleware.RateLimiter
	TrustProxy     bool
	Registry       *prometheus.Registry
}

// NewRouter wires HTTP handlers and the middleware stack into a chi router.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{
		Users:          deps.Users,
		Sessions:       deps.Sessions,
		Hasher:         deps.Hasher,
		Spool:          deps.Spool,
		Uploader:       deps.Uploader,
		Cookies:        deps.Cookies,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	channels := ChannelHandler{Channels: deps.Channels}
	metrics := middleware.NewMetrics(registry)

	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(metrics.Handler)
	if deps.CORSOrigin != "" {
		r.Use(middleware.CORS(deps.CORSOrigin))
	}

	r.NotFound(Handle(func(http.ResponseWriter, *http.Request) error {
		return apperr.NotFound("Route not found")
	}))
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(r.Context(), w, http.StatusMethodNotAllowed, nil, "Method not allowed")
	})

	r.Get("/healthz", Handle(health.Handle))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(middleware.RateLimit(deps.AuthLimiter, "register")).Post("/register", Handle(auth.Register))
		r.With(middleware.RateLimit(deps.AuthLimiter, "login")).Post("/login", Handle(auth.Login))
		r.With(middleware.RateLimit(deps.AuthLimiter, "refresh")).Post("/refresh-token", Handle(auth.RefreshToken))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Sessions))

			r.Post("/logout", Handle(auth.Logout))
			r.Post("/change-password", Handle(auth.ChangePassword))
			r.Get("/current-user", Handle(auth.CurrentUser))
			r.Patch("/account-update", Handle(auth.UpdateAccount))
			r.Patch("/avatar", Handle(auth.UpdateAvatar))
			r.Patch("/cover-image", Handle(auth.UpdateCoverImage))

			r.Get("/channel", Handle(channels.Profile))
			r.Get("/channel/{username}", Handle(channels.Profile))
			r.Post("/channel/{username}/subscribe", Handle(channels.Subscribe))
			r.Delete("/channel/{username}/subscribe", Handle(channels.Unsubscribe))

			r.Get("/watch-history", Handle(channels.WatchHistory))
			r.Post("/watch-history", Handle(channels.WatchHistory))
			r.Post("/watch-history/{videoId}", Handle(channels.RecordWatch))
		})
	})

	return r
}
