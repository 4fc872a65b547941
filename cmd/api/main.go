//	@title			Celestial API
//	@version		1.0
//	@description	Backend for Celestial — an authenticated image-sharing service.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/celestial/service/internal/auth"
	"github.com/celestial/service/internal/config"
	"github.com/celestial/service/internal/db"
	"github.com/celestial/service/internal/image"
	appMiddleware "github.com/celestial/service/internal/middleware"
	"github.com/celestial/service/internal/response"
	"github.com/celestial/service/internal/storage"
	"github.com/celestial/service/internal/user"

	_ "github.com/celestial/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// Select the blob storage backend once for the process lifetime. A
	// misconfigured remote backend refuses to start rather than silently
	// falling back to local disk.
	var store storage.Storage
	var localStore *storage.FSStorage
	if cfg.UseRemoteStorage {
		store, err = storage.NewMinioStorage(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StoragePublicBase,
			cfg.StorageUseSSL,
			cfg.StorageTimeout,
		)
		if err != nil {
			log.Fatalf("object storage init failed: %v", err)
		}
		log.Printf("storage: remote backend bucket=%s endpoint=%s", cfg.StorageBucket, cfg.StorageEndpoint)
	} else {
		localStore, err = storage.NewFSStorage(cfg.MediaRoot, cfg.MediaURL)
		if err != nil {
			log.Fatalf("local storage init failed: %v", err)
		}
		store = localStore
		log.Printf("storage: local backend root=%s url=%s", cfg.MediaRoot, cfg.MediaURL)
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(userSvc, cfg)
	authHandler := auth.NewHandler(authSvc)

	imageRepo := image.NewRepository(pool)
	imageSvc := image.NewService(imageRepo, store, cfg.MaxUploadBytes)
	imageHandler := image.NewHandler(imageSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// In local-storage mode this process also serves the uploaded files.
	if localStore != nil {
		prefix := "/" + strings.Trim(cfg.MediaURL, "/") + "/"
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(localStore.Root())))
		r.Get(prefix+"*", func(w http.ResponseWriter, req *http.Request) {
			fs.ServeHTTP(w, req)
		})
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Protected user endpoints
		r.Route("/users", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Get("/me", userHandler.GetMe)
		})

		// Protected image endpoints
		r.Route("/images", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Post("/", imageHandler.Upload)
			r.Get("/", imageHandler.List)
			r.Patch("/{id}", imageHandler.Update)
			r.Delete("/{id}", imageHandler.Delete)
		})
	})

	// Unknown API routes still answer with the JSON envelope.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, "route not found")
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
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
