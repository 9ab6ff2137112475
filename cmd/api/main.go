package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arenadesk/arenadesk/internal/admission"
	"github.com/arenadesk/arenadesk/internal/auth"
	"github.com/arenadesk/arenadesk/internal/chatops"
	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/db"
	httpx "github.com/arenadesk/arenadesk/internal/http"
	"github.com/arenadesk/arenadesk/internal/http/handlers"
	"github.com/arenadesk/arenadesk/internal/lifecycle"
	"github.com/arenadesk/arenadesk/internal/messenger"
	"github.com/arenadesk/arenadesk/internal/notify"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/arenadesk/arenadesk/internal/redisclient"
	"github.com/arenadesk/arenadesk/internal/repo/memory"
	"github.com/arenadesk/arenadesk/internal/repo/postgres"
	"github.com/arenadesk/arenadesk/internal/repo/rediscache"
	"github.com/arenadesk/arenadesk/internal/sched"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

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

	// tracing is optional; without an endpoint we just skip it
	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "arenadesk-api", cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	// storage: postgres when configured, in-memory otherwise
	var (
		eventStore   lifecycle.EventStore
		grantStore   lifecycle.GrantStore
		grantChecker chatops.GrantChecker
		admitter     admission.Admitter
		events       chatops.EventGetter
		regs         chatops.RegistrationReader
		openFinder   rediscache.OpenEventFinder
		deliveries   notify.DeliveryLog
		ping         func() error
	)

	if cfg.DBURL != "" {
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		eventsRepo := postgres.NewEventsRepo(pool, prom)
		registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)
		grantsRepo := postgres.NewGrantsRepo(pool, prom)

		eventStore = eventsRepo
		grantStore = grantsRepo
		grantChecker = grantsRepo
		admitter = registrationsRepo
		events = eventsRepo
		regs = registrationsRepo
		openFinder = eventsRepo
		deliveries = postgres.NewDeliveriesRepo(pool, prom)

		ping = func() error {
			pctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return pool.Ping(pctx)
		}

		log.Info("using postgres store")
	} else {
		store := memory.NewStore()

		eventStore = store
		grantStore = store
		grantChecker = store
		admitter = store
		events = store
		regs = store
		openFinder = store

		log.Info("using in-memory store")
	}

	// redis-backed open-event cache, optional
	var invalidator lifecycle.Invalidator

	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		if err := rdb.Ping(ctx); err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		cache := rediscache.NewOpenEventCache(openFinder, rdb.Raw(), 0, log)
		openFinder = cache
		invalidator = cache

		log.Info("open-event cache enabled", "addr", cfg.RedisAddr)
	}

	// outbound messaging with a circuit breaker in front
	msgr := messenger.NewProtectedMessenger(messenger.NewLogMessenger(), messenger.ProtectedConfig{})

	scheduler := sched.New(sched.Config{Logger: log, Metrics: prom})

	pipeline := notify.New(notify.Config{Logger: log, Metrics: prom}, events, regs, msgr, scheduler, deliveries)

	svc := lifecycle.New(lifecycle.Config{Logger: log}, eventStore, grantStore, pipeline, invalidator)

	// recover reveal schedules lost on restart
	if _, err := svc.Rehydrate(ctx); err != nil {
		log.Error("rehydrate failed", "err", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(ctx, pipeline); err != nil && err != context.Canceled {
			log.Error("scheduler stopped", "err", err)
		}
	}()

	guard := admission.NewGuard(admitter, events, msgr, cfg.OperatorChatID, log)

	// chat gateway over stdin for local operation
	if os.Getenv("CHAT_STDIN") == "1" {
		gw := chatops.NewGateway(chatops.Config{
			AdminUserID: cfg.OperatorUserID,
			SessionTTL:  cfg.SessionTTL,
			Logger:      log,
		}, msgr, svc, guard, openFinder, events, regs, grantChecker)

		src := messenger.NewStdinSource(cfg.OperatorUserID, cfg.OperatorChatID)

		go gw.Run(ctx, src)

		log.Info("chat gateway listening on stdin")
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL)

	authHandler, err := handlers.NewAuthHandler(jwtManager, cfg.OperatorUserID, cfg.OperatorEmail, cfg.OperatorPassword)
	if err != nil {
		log.Error("auth handler init failed", "err", err)
		os.Exit(1)
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Prom:     prom,
		PromReg:  promReg,
		Events:   svc,
		Guard:    guard,
		Regs:     regs,
		Grants:   svc,
		Auth:     authHandler,
		Verifier: jwtManager,
		Ping:     ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		sctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(sctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
