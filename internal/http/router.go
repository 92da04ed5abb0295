package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AuthService is what the auth routes and the bearer middleware need.
type AuthService interface {
	handlers.AuthService
	middlewares.TokenVerifier
}

type RouterDeps struct {
	Log    *slog.Logger
	Config config.Config

	// Prom and Gatherer are optional; /metrics is only mounted with a gatherer.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Auth  AuthService
	Tasks handlers.TaskService

	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error
}

func NewRouter(d RouterDeps) *gin.Engine {
	if !d.Config.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.Config.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	if d.Config.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	requireAuth := middlewares.NewAuthMiddleware(d.Auth).RequireAuth()

	authHandler := handlers.NewAuthHandler(d.Auth)
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", requireAuth, authHandler.Me)
	}

	tasksHandler := handlers.NewTasksHandler(d.Tasks)
	tasks := r.Group("/tasks", requireAuth)
	{
		tasks.GET("", tasksHandler.List)
		tasks.POST("", tasksHandler.Create)
		tasks.GET("/:id", tasksHandler.Get)
		tasks.PUT("/:id", tasksHandler.Update)
		tasks.PATCH("/:id", tasksHandler.Update)
		tasks.DELETE("/:id", tasksHandler.Delete)
		tasks.PATCH("/:id/toggle", tasksHandler.Toggle)
	}

	return r
}
