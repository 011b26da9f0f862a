//	@title			Wanderhosts Media API
//	@version		1.0
//	@description	Media upload and serving service. Uploads are authorized by signed, single-use tokens issued by the main application.
//
//	@host		localhost:5001
//	@BasePath	/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/wanderhosts/media/internal/config"
	"github.com/wanderhosts/media/internal/media"
	appMiddleware "github.com/wanderhosts/media/internal/middleware"
	"github.com/wanderhosts/media/internal/storage"
	"github.com/wanderhosts/media/internal/upstream"

	_ "github.com/wanderhosts/media/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("blob storage init failed")
	}

	confirmer, err := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamBearer, cfg.UpstreamTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("upstream client init failed")
	}

	// Wire dependencies: store + confirmer → service → handler
	mediaSvc := media.NewService(store, confirmer, cfg.SecretKey, cfg.BaseURL, cfg.ThumbnailSize)
	mediaHandler := media.NewHandler(mediaSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:5001/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	mediaHandler.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

// newStore builds the configured blob store backend.
func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageUseSSL,
		)
	}
	return storage.NewLocalStore(cfg.StoragePath)
}
