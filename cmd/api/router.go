package main

import (
	"net/http"

	healthlib "github.com/alexliesenfeld/health"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/quickshare/service/internal/config"
	"github.com/quickshare/service/internal/health"
	"github.com/quickshare/service/internal/metrics"
	appMiddleware "github.com/quickshare/service/internal/middleware"
	"github.com/quickshare/service/internal/share"

	_ "github.com/quickshare/service/docs/swagger"
)

func newRouter(cfg *config.Config, log *zap.Logger, shareHandler *share.Handler, m *metrics.Metrics, checker healthlib.Checker) http.Handler {
	requireAuth := appMiddleware.BasicAuth(cfg.AuthUser, cfg.AuthPassword, appMiddleware.DefaultRealm)
	uploadLimit := appMiddleware.NewRateLimiter(cfg.UploadRateLimit, cfg.UploadRateBurst)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	// Forwarding headers are client-controlled unless a proxy overwrites them.
	if cfg.TrustProxyHeaders {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/health", health.Handler(checker))
	r.With(requireAuth).Method(http.MethodGet, "/metrics", m.Handler())

	// Swagger UI at /swagger/index.html
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	shareHandler.RegisterRoutes(r, requireAuth, uploadLimit.Handler)
	return r
}
