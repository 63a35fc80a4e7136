//	@title			ImageHost API
//	@version		1.0
//	@description	Image hosting backend. Clients upload straight to object storage via presigned URLs; this API hands out the URLs and keeps the metadata.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
//	@description				Signed API key issued by /register, /login or /dev/issue-key.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/imagehost/service/internal/auth"
	"github.com/imagehost/service/internal/config"
	"github.com/imagehost/service/internal/images"
	"github.com/imagehost/service/internal/logging"
	"github.com/imagehost/service/internal/metastore"
	appMiddleware "github.com/imagehost/service/internal/middleware"
	"github.com/imagehost/service/internal/response"
	"github.com/imagehost/service/internal/storage"

	_ "github.com/imagehost/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.AppEnv)

	store, err := newMetastore(cfg)
	if err != nil {
		log.Fatalf("metadata store init failed: %v", err)
	}
	defer store.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		log.Fatalf("metadata store unreachable: %v", err)
	}
	cancelPing()

	objects, err := storage.NewMinioStorage(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StorageUseSSL,
	)
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}

	// Wire dependencies: store → service → handler
	authSvc := auth.NewService(store, cfg.APIKeySecret)
	authHandler := auth.NewHandler(authSvc)

	imagesSvc := images.NewService(store, objects, cfg.PublicBaseURL, cfg.PresignPutTTL, cfg.PresignGetTTL)
	imagesHandler := images.NewHandler(imagesSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health and store diagnostics
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})
	r.Get("/store-check", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusInternalServerError, response.CodeStoreUnreachable, err.Error())
			return
		}
		response.OK(w, map[string]bool{"store": true})
	})

	// Swagger UI, served at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/image/{iid}", imagesHandler.View)

		if !cfg.IsProduction() {
			r.Post("/dev/issue-key", authHandler.IssueDevKey)
		}

		// Key-protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.APIKeySecret))
			r.Post("/upload/request", imagesHandler.RequestUpload)
			r.Post("/upload/complete", imagesHandler.ConfirmUpload)
			r.Get("/me/images", imagesHandler.Gallery)
			r.Delete("/image/{iid}", imagesHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv, "meta_backend", cfg.MetaBackend)
		slog.Info("swagger UI available", "url", fmt.Sprintf("http://localhost:%s/swagger/", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	slog.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	slog.Info("server stopped")
}

// newMetastore picks the metadata backend from configuration.
func newMetastore(cfg *config.Config) (metastore.Store, error) {
	switch cfg.MetaBackend {
	case "redis":
		return metastore.NewRedis(cfg.RedisURL)
	case "badger":
		return metastore.NewBadger(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown META_BACKEND %q (want redis or badger)", cfg.MetaBackend)
	}
}
