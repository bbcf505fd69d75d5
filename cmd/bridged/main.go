// Command bridged runs the bridge authentication + license activation
// service for the desktop client.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	authgin "github.com/oradesk/bridgekit/adapters/gin"
	"github.com/oradesk/bridgekit/adapters/ginutil"
	"github.com/oradesk/bridgekit/config"
	"github.com/oradesk/bridgekit/core"
	"github.com/oradesk/bridgekit/jobs"
	jwtkit "github.com/oradesk/bridgekit/jwt"
	migrations "github.com/oradesk/bridgekit/migrations/postgres"
	memorylimiter "github.com/oradesk/bridgekit/ratelimit/memory"
	redislimiter "github.com/oradesk/bridgekit/ratelimit/redis"
	pgstore "github.com/oradesk/bridgekit/storage/postgres"
	redisstore "github.com/oradesk/bridgekit/storage/redis"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if lvl, perr := logrus.ParseLevel(cfg.LogLevel); perr == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("postgres connect")
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		log.WithError(err).Fatal("migrations")
	}

	store := pgstore.NewStore(pool, cfg.DBSchema)

	var coreStore core.Store = store
	var rl ginutil.RateLimiter
	if cfg.RedisURL != "" {
		ropts, rerr := redis.ParseURL(cfg.RedisURL)
		if rerr != nil {
			log.WithError(rerr).Fatal("redis url")
		}
		rdb := redis.NewClient(ropts)
		coreStore = redisstore.NewCachedStore(store, redisstore.NewPlanCache(rdb, "", 0), log)
		rl = redislimiter.New(rdb, map[string]redislimiter.Limit{
			ginutil.RLLicenseValidate:  {Limit: 60, Window: time.Minute},
			ginutil.RLDeviceList:       {Limit: 30, Window: time.Minute},
			ginutil.RLDeviceDeactivate: {Limit: 10, Window: time.Minute},
		})
	} else {
		rl = memorylimiter.New(map[string]memorylimiter.Limit{
			ginutil.RLLicenseValidate:  {Limit: 60, Window: time.Minute},
			ginutil.RLDeviceList:       {Limit: 30, Window: time.Minute},
			ginutil.RLDeviceDeactivate: {Limit: 10, Window: time.Minute},
		})
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &jobs.APIKeyUsageWorker{Store: store})
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: cfg.UsageWorkers}},
		Workers: workers,
	})
	if err != nil {
		log.WithError(err).Fatal("river client")
	}
	if err := riverClient.Start(ctx); err != nil {
		log.WithError(err).Fatal("river start")
	}

	var sessions core.SessionVerifier
	if cfg.SessionIssuer != "" {
		sessions, err = jwtkit.NewSessionVerifier(ctx, jwtkit.VerifierConfig{
			Issuer:       cfg.SessionIssuer,
			Audience:     cfg.SessionAudience,
			JWKSURL:      cfg.SessionJWKSURL,
			PinnedRSAPEM: cfg.SessionPinnedPEM,
			Skew:         cfg.SessionSkew,
		})
		if err != nil {
			log.WithError(err).Fatal("session verifier")
		}
	}

	svc, err := core.NewService(core.Config{
		Store:    coreStore,
		Sessions: sessions,
		Usage:    jobs.NewRecorder(riverClient, log),
		Logger:   log,
	})
	if err != nil {
		log.WithError(err).Fatal("service")
	}

	cr := cron.New()
	sweeper := jobs.NewStaleDeviceSweeper(store, time.Duration(cfg.SweepIdleDays)*24*time.Hour, log)
	if err := sweeper.Schedule(cr, cfg.SweepSchedule); err != nil {
		log.WithError(err).Fatal("sweep schedule")
	}
	cr.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	authgin.RegisterBridgeAPI(r, svc, rl)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.WithField("addr", cfg.Addr).Info("bridge listening")
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.WithError(serr).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.WithError(serr).Warn("http shutdown")
	}
	if serr := riverClient.Stop(shutdownCtx); serr != nil {
		log.WithError(serr).Warn("river stop")
	}
	<-cr.Stop().Done()
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}

	// River keeps its job tables in their own migration line.
	rm, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	_, err = rm.Migrate(ctx, rivermigrate.DirectionUp, nil)
	return err
}
