package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	billingmodule "github.com/dualspace/memberd/modules/billing"
	"github.com/dualspace/memberd/pkg/billing"
	"github.com/dualspace/memberd/pkg/config"
	"github.com/dualspace/memberd/pkg/entitlement"
	"github.com/dualspace/memberd/pkg/httpserver"
	"github.com/dualspace/memberd/pkg/logger"
	"github.com/dualspace/memberd/pkg/pg"
	redispkg "github.com/dualspace/memberd/pkg/redis"
)

type appConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PG     pg.Config
	Redis  redispkg.Config
	Stripe billing.StripeConfig
	HTTP   httpserver.Config
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("memberd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithService("memberd"),
	)
	slog.SetDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	rdb, err := redispkg.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	provider, err := billing.NewStripeProvider(cfg.Stripe)
	if err != nil {
		return err
	}

	svc := entitlement.NewService(
		provider,
		entitlement.NewPgUserStore(pool),
		entitlement.NewPgProductStore(pool),
		entitlement.NewPgPurchaseStore(pool),
		entitlement.NewPgSubscriptionStore(pool),
		entitlement.WithLogger(log),
		entitlement.WithJournal(entitlement.NewRedisJournal(rdb, 0)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(log))
	r.Get("/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool), redispkg.Healthcheck(rdb)))
	r.Mount("/billing", billingmodule.Router(billingmodule.RouterOptions{
		Service:     svc,
		Provider:    provider,
		CurrentUser: headerIdentity,
		Logger:      log,
	}))

	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}

// headerIdentity trusts the identity header injected by the fronting
// application, which owns authentication. memberd is never exposed directly.
func headerIdentity(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Member-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing identity header")
	}
	return uuid.Parse(raw)
}
