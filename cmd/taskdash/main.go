package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"taskdash/internal/app"
	"taskdash/internal/config"
	"taskdash/internal/middleware"
	"taskdash/internal/monitoring"
	"taskdash/internal/server"
	"taskdash/internal/storage"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load environment file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	kv, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Storage.Driver, err)
	}

	ctx := context.Background()
	if err := kv.Health(ctx); err != nil {
		log.Printf("Warning: %s store is not healthy yet: %v", cfg.Storage.Driver, err)
	}

	application, err := app.New(ctx, cfg, kv)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	application.Start()

	limiterCtx, stopLimiter := context.WithCancel(ctx)
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
		go limiter.Run(limiterCtx)
	}

	router := server.NewRouter(application, monitoring.NewMonitor(), limiter)

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server listening on %s (storage: %s, simulated weather: %t)",
			srv.Addr, cfg.Storage.Driver, cfg.UsesSimulatedWeather())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("Press Ctrl+C to shutdown")

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Println("Shutting down HTTP server...")
				stopLimiter()
				if err := srv.Shutdown(ctx); err != nil {
					return err
				}
				return application.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
