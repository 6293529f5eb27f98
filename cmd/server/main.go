package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"taskapi/docs"
	"taskapi/internal/auth"
	"taskapi/internal/cache"
	"taskapi/internal/config"
	"taskapi/internal/db"
	"taskapi/internal/handler"
	"taskapi/internal/metrics"
	"taskapi/internal/repository"
	"taskapi/internal/router"
	"taskapi/internal/service"
)

// @title Task API
// @version 1.0
// @description Task management API with JWT authentication and per-user tasks.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true

	gormDB, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	ctx := context.Background()
	if cfg.ResetDB {
		log.Println("RESET_DB=true detected, dropping all tables...")
		if err := repository.DropAll(ctx, gormDB); err != nil {
			log.Printf("Warning: failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := repository.Migrate(ctx, gormDB); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Printf("Warning: redis unavailable at %s, logout revocation and task cache are degraded: %v", cfg.RedisAddr, err)
	}

	m := metrics.New()
	store := repository.NewStore(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	hasher := auth.NewPasswordHasher(auth.DefaultBcryptCost)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(store, jwtService, hasher, tokenStore, m)
	taskService := service.NewTaskService(store, cacheClient, m)

	router.Register(e, cfg, router.Deps{
		JWT:         jwtService,
		Tokens:      tokenStore,
		Metrics:     m,
		AuthHandler: handler.NewAuthHandler(authService),
		TaskHandler: handler.NewTaskHandler(taskService),
	})

	swaggerURL := swaggerBaseURL(cfg.SwaggerHost) + "/api-docs/index.html"
	log.Printf("Swagger documentation available at: %s", swaggerURL)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

// swaggerBaseURL also points the generated docs at the configured host.
func swaggerBaseURL(host string) string {
	if host == "" {
		return "http://localhost:8080"
	}
	switch {
	case strings.HasPrefix(host, "http://"):
		docs.SwaggerInfo.Host = strings.TrimPrefix(host, "http://")
	case strings.HasPrefix(host, "https://"):
		docs.SwaggerInfo.Host = strings.TrimPrefix(host, "https://")
		docs.SwaggerInfo.Schemes = []string{"https"}
	default:
		docs.SwaggerInfo.Host = host
		return "http://" + host
	}
	return host
}
