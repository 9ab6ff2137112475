package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/db"
	"github.com/arenadesk/arenadesk/internal/lifecycle"
	"github.com/arenadesk/arenadesk/internal/messenger"
	"github.com/arenadesk/arenadesk/internal/notify"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/arenadesk/arenadesk/internal/repo/postgres"
	"github.com/arenadesk/arenadesk/internal/sched"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// The worker owns the reveal timers when the API tier is run stateless.
// It re-derives every pending job from scheduled events at startup, so
// it needs postgres; there is nothing to recover from with the
// in-memory store.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.DBURL == "" {
		log.Error("worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	eventsRepo := postgres.NewEventsRepo(pool, prom)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
	deliveriesRepo := postgres.NewDeliveriesRepo(pool, prom)
	grantsRepo := postgres.NewGrantsRepo(pool, prom)

	msgr := messenger.NewProtectedMessenger(messenger.NewLogMessenger(), messenger.ProtectedConfig{})

	scheduler := sched.New(sched.Config{Logger: log, Metrics: prom})

	pipeline := notify.New(notify.Config{Logger: log, Metrics: prom}, eventsRepo, registrationsRepo, msgr, scheduler, deliveriesRepo)

	svc := lifecycle.New(lifecycle.Config{Logger: log}, eventsRepo, grantsRepo, pipeline, nil)

	n, err := svc.Rehydrate(ctx)
	if err != nil {
		log.Error("rehydrate failed", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(log)
	log.Info("worker started", "rehydrated", n)

	if err := scheduler.Run(ctx, pipeline); err != nil && err != context.Canceled {
		log.Error("scheduler stopped", "err", err)
	}

	log.Info("worker shutdown complete")
}
