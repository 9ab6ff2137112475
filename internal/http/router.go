package http

import (
	"log/slog"
	"os"
	"time"

	"github.com/arenadesk/arenadesk/internal/http/handlers"
	"github.com/arenadesk/arenadesk/internal/http/middlewares"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps holds everything the router needs wired in. Handlers take
// interfaces so tests can pass fakes.
type Deps struct {
	Log      *slog.Logger
	Prom     *observability.Prom
	PromReg  *prometheus.Registry
	Events   handlers.EventService
	Guard    handlers.Registrar
	Regs     handlers.RegistrationLister
	Grants   handlers.GrantService
	Auth     *handlers.AuthHandler
	Verifier middlewares.TokenVerifier
	Ping     func() error
}

func NewRouter(d Deps) *gin.Engine {
	cfgEnv := os.Getenv("APP_ENV")

	if cfgEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(otelgin.Middleware("arenadesk-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())

	limiter := middlewares.NewRateLimiter(60, time.Minute)
	r.Use(limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))
	}

	// operator login
	r.POST("/auth/login", d.Auth.Login)

	eventsHandler := handlers.NewEventsHandler(d.Events)
	registrationHandler := handlers.NewRegistrationHandler(d.Guard, d.Regs)
	grantsHandler := handlers.NewGrantsHandler(d.Grants)

	// public surface
	r.GET("/events", eventsHandler.ListEvents)
	r.GET("/events/:id", eventsHandler.GetEventById)
	r.POST("/events/:id/register", registrationHandler.Register)

	// operator surface
	authMW := middlewares.NewAuthMiddleware(d.Verifier)
	op := r.Group("/", authMW.RequireAuth())

	op.POST("/events", eventsHandler.CreateEvent)
	op.POST("/events/:id/close", eventsHandler.CloseRegistration)
	op.POST("/events/:id/room", eventsHandler.SetRoom)
	op.POST("/events/:id/winner", eventsHandler.AnnounceWinner)
	op.GET("/events/:id/registrations", registrationHandler.ListForEvent)
	op.POST("/grants", grantsHandler.CreateGrant)
	op.GET("/grants", grantsHandler.ListGrants)

	return r
}
