package server

import (
	"context"
	"time"

	"taskdash/internal/app"
	"taskdash/internal/handlers"
	"taskdash/internal/middleware"
	"taskdash/internal/monitoring"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the HTTP surface over a. limiter may be nil.
func NewRouter(a *app.App, monitor *monitoring.Monitor, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(monitor.Middleware())

	monitor.RegisterHealthCheck("storage", func(ctx context.Context) error {
		return a.Store.Health(ctx)
	})
	monitor.RegisterStats("storage", a.Store.Stats)
	monitor.RegisterStats("dispatch", a.Dispatcher.Stats)

	router.GET("/health", monitor.HealthHandler())
	router.GET("/ready", monitor.ReadinessHandler())
	router.GET("/live", monitor.LivenessHandler())
	router.GET("/metrics", monitor.MetricsHandler())

	api := router.Group("/api")
	if limiter != nil {
		api.Use(limiter.Middleware())
	}

	authHandler := handlers.NewAuthHandler(a.Gate, a.Tokens)
	authRoutes := api.Group("/auth")
	{
		authRoutes.GET("/status", authHandler.Status)
		authRoutes.GET("/session", authHandler.Session)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/logout", authHandler.Logout)
		authRoutes.DELETE("/error", authHandler.ClearError)
	}

	protected := api.Group("")
	protected.Use(middleware.RequireSession(a.Tokens, a.Gate))

	taskHandler := handlers.NewTaskHandler(a, a.Tasks)
	{
		protected.GET("/tasks", taskHandler.GetTasks)
		protected.POST("/tasks", taskHandler.CreateTask)
		protected.DELETE("/tasks", taskHandler.ClearTasks)
		protected.PATCH("/tasks/:id/toggle", taskHandler.ToggleTask)
		protected.PATCH("/tasks/:id/priority", taskHandler.UpdateTaskPriority)
		protected.DELETE("/tasks/:id", taskHandler.DeleteTask)
	}

	weatherHandler := handlers.NewWeatherHandler(a.Weather)
	{
		protected.GET("/weather", weatherHandler.GetWeather)
		protected.POST("/weather", weatherHandler.FetchWeather)
		protected.POST("/weather/refresh", weatherHandler.RefreshWeather)
		protected.DELETE("/weather", weatherHandler.ClearWeather)
	}

	protected.POST("/dispatch", handlers.NewDispatchHandler(a.Dispatcher).Dispatch)

	return router
}
