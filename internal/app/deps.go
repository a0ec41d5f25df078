package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/streamhub/backend/internal/auth"
	"github.com/streamhub/backend/internal/config"
	"github.com/streamhub/backend/internal/db"
	"github.com/streamhub/backend/internal/handlers"
	"github.com/streamhub/backend/internal/middleware"
	"github.com/streamhub/backend/internal/profiles"
	"github.com/streamhub/backend/internal/repositories"
	"github.com/streamhub/backend/internal/storage"
)

// imagePrefix is the object key prefix for avatars and cover images.
const imagePrefix = "images"

// pingPool is a connection pool that can also report its health.
type pingPool interface {
	db.Pool
	Ping(ctx context.Context) error
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool pingPool, cfg config.Config) (handlers.Dependencies, error) {
	objectStore, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure object storage: %w", err)
	}

	users := repositories.NewPostgresUserRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)

	issuer := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Tokens.AccessSecret,
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return handlers.Dependencies{
		Users:    users,
		Sessions: auth.NewManager(issuer, repositories.NewUserSessionStore(users)),
		Hasher:   auth.NewHasher(cfg.BcryptCost),
		Spool:    storage.NewSpool(cfg.UploadDir, cfg.MaxUploadBytes),
		Uploader: storage.NewAssetUploader(objectStore, imagePrefix),
		Channels: profiles.NewAggregator(users, subscriptions, videos),
		DB:       pool,
		Cookies: handlers.CookieConfig{
			Secure:     cfg.CookieSecure,
			AccessTTL:  cfg.Tokens.AccessTTL,
			RefreshTTL: cfg.Tokens.RefreshTTL,
		},
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigin:     cfg.CORSOrigin,
		AuthLimiter:    middleware.NewKeyedLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
		TrustProxy:     cfg.TrustProxy,
		Registry:       registry,
	}, nil
}
