package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/h5p-content/pkg/h5pcontent/api"
	"github.com/tendant/h5p-content/pkg/h5pcontent/config"
)

func main() {
	configFile := flag.String("config", "", "optional YAML/JSON/.env config file")
	flag.Parse()

	opts := []config.Option{config.WithEnv()}
	if *configFile != "" {
		opts = []config.Option{config.WithConfigFile(*configFile)}
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	svc, closeFn, err := cfg.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	r := chi.NewRouter()
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", api.HeaderOrgID, api.HeaderUserID},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         300,
		}))
	}
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	routes := api.NewRouter(svc, logger)
	if cfg.APIKeySHA256 != "" {
		apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{"key1": cfg.APIKeySHA256},
		})
		if err != nil {
			logger.Error("Failed initialize API Key middleware", "err", err)
			os.Exit(1)
		}
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			r.Mount("/", routes)
		})
	} else {
		logger.Warn("API_KEY_SHA256 not set, API is unauthenticated")
		r.Mount("/api/v1", routes)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			"port", cfg.Port, "environment", cfg.Environment,
			"database", cfg.DatabaseType, "storage", cfg.StorageType)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}
