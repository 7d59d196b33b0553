// Command server runs the workplan API: Keycloak-backed token
// verification in front of the project-management endpoints, with
// Postgres storage, a river job queue, and scheduled maintenance.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	authgin "github.com/open-rails/workplan/adapters/gin"
	"github.com/open-rails/workplan/adapters/gin/handlers"
	"github.com/open-rails/workplan/config"
	"github.com/open-rails/workplan/jobs"
	migrations "github.com/open-rails/workplan/migrations/postgres"
	oidckit "github.com/open-rails/workplan/oidc"
	memorylimiter "github.com/open-rails/workplan/ratelimit/memory"
	redislimiter "github.com/open-rails/workplan/ratelimit/redis"
	"github.com/open-rails/workplan/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	defer pool.Close()

	if err := runMigrations(ctx, db, pool, log); err != nil {
		return err
	}
	st := store.New(db)

	keys := oidckit.NewRemoteKeySource(cfg.CertsURL(), cfg.PublicKeyCacheTTL, log)
	verifier := oidckit.NewTokenVerifier(keys, oidckit.VerifierConfig{
		Algorithm:    cfg.JWTAlgorithm,
		Audience:     cfg.JWTAudience,
		Issuer:       cfg.RealmURL(),
		VerifyIssuer: cfg.VerifyIssuer,
		Leeway:       cfg.JWTLeeway,
	}, log)
	userinfo := oidckit.NewUserInfoClient(cfg.UserinfoURL(), log)

	limiter := buildLimiter(ctx, cfg, log)

	notifier, err := jobs.NewClient(pool, st, log)
	if err != nil {
		return err
	}
	if err := notifier.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = notifier.Stop(stopCtx)
	}()

	sched := startScheduler(keys, st, log)
	defer sched.Stop()

	router := handlers.NewRouter(handlers.RouterDeps{
		Verifier:       verifier,
		UserInfo:       userinfo,
		Store:          st,
		Notifier:       notifier,
		RL:             limiter,
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// runMigrations applies the schema registry and river's own tables.
func runMigrations(ctx context.Context, db *bun.DB, pool *pgxpool.Pool, log *logrus.Logger) error {
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if !group.IsZero() {
		log.WithField("group", group.String()).Info("applied migrations")
	}

	rm, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("init river migrations: %w", err)
	}
	if _, err := rm.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}

// buildLimiter prefers the shared Redis limiter and falls back to the
// in-process one when no Redis address is configured or reachable.
func buildLimiter(ctx context.Context, cfg *config.Settings, log *logrus.Logger) authgin.RateLimiter {
	if cfg.RedisAddr == "" {
		log.Info("rate limiting in memory, no REDIS_ADDR set")
		return memorylimiter.New(nil)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable, rate limiting in memory")
		return memorylimiter.New(nil)
	}
	return redislimiter.New(rdb, nil)
}

// startScheduler prewarms the key cache every hour so the first request
// after a quiet stretch does not pay the fetch, and prunes read
// notifications older than 30 days nightly.
func startScheduler(keys *oidckit.RemoteKeySource, st *store.Store, log *logrus.Logger) *cron.Cron {
	c := cron.New()
	_, _ = c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := keys.Keys(ctx); err != nil {
			log.WithError(err).Warn("key cache prewarm failed")
		}
	})
	_, _ = c.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := st.PruneReadNotifications(ctx, time.Now().AddDate(0, 0, -30))
		if err != nil {
			log.WithError(err).Warn("notification prune failed")
			return
		}
		if n > 0 {
			log.WithField("count", n).Info("pruned read notifications")
		}
	})
	c.Start()
	return c
}
