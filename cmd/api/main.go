// cmd/api/main.go
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeline-editor/internal/config"
	"timeline-editor/internal/handler"
	"timeline-editor/internal/logging"
	"timeline-editor/internal/probe"
	"timeline-editor/internal/service"
	"timeline-editor/internal/storage"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env in dev only: production injects env vars through infra (K8s secrets, etc.)
	if os.Getenv("APP_ENV") != "production" {
		godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to open DB:", err)
	}
	defer db.Close()

	// Connection pool: prevents overwhelming DB under concurrent load
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection at startup: fail fast rather than accepting traffic
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	projectService := &service.ProjectService{DB: db}
	if err := projectService.Migrate(context.Background()); err != nil {
		log.Fatal("Migration failed:", err)
	}

	var dbName string
	if err := db.QueryRowContext(context.Background(), "SELECT current_database()").Scan(&dbName); err != nil {
		logger.Warn("could not read database name", "error", err)
	} else {
		logger.Info("connected to database", "name", dbName)
	}

	// ── Storage (swappable: local disk or S3) ─────────────────────────────────
	var fileStorage storage.Storage
	if cfg.StorageType == "s3" {
		s3Storage, err := storage.NewS3Storage(context.Background(), storage.S3Config{
			Bucket:       cfg.AWSBucket,
			Region:       cfg.AWSRegion,
			Endpoint:     cfg.AWSEndpoint,
			AccessKeyID:  cfg.AWSAccessKeyID,
			SecretKey:    cfg.AWSSecretKey,
			UsePathStyle: cfg.AWSUsePathStyle,
		})
		if err != nil {
			log.Fatal("Failed to configure S3 storage:", err)
		}
		fileStorage = s3Storage
		logger.Info("using S3 storage", "bucket", cfg.AWSBucket, "region", cfg.AWSRegion)
	} else {
		localStorage, err := storage.NewLocalStorage(cfg.UploadDir, cfg.BaseURL)
		if err != nil {
			log.Fatal("Failed to configure local storage:", err)
		}
		fileStorage = localStorage
		logger.Info("using local storage", "dir", cfg.UploadDir)
	}

	// ── Session snapshots (optional) ──────────────────────────────────────────
	var snapshots service.SnapshotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		snapshots = service.NewRedisSnapshots(redisClient, cfg.SessionTTL)
		logger.Info("session snapshots enabled", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	}

	// ── Services & Handlers ───────────────────────────────────────────────────
	editingService, err := service.NewEditingService(projectService, snapshots, cfg.MaxLiveSessions, cfg.FallbackDuration, cfg.Tuning)
	if err != nil {
		log.Fatal("Failed to create editing service:", err)
	}
	editorHandler := handler.New(projectService, editingService, fileStorage, probe.New(cfg.FFprobePath, cfg.ProbeTimeout))

	// ── Router ────────────────────────────────────────────────────────────────
	r := mux.NewRouter()

	// Health check: required by load balancers and Kubernetes liveness probes
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API routes: versioned so the parent product can call /api/v1/* without conflicts
	editorHandler.Register(r.PathPrefix("/api/v1").Subrouter())

	// Serve local uploads: with S3 the bucket serves files directly
	if cfg.StorageType != "s3" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))),
		)
	}

	// ── CORS (origins from env) ────────────────────────────────────────
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		// X-User-ID: injected by the API gateway
		handlers.AllowedHeaders([]string{"Content-Type", "X-User-ID", "Authorization"}),
	)

	var h http.Handler = cors(r)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(!cfg.IsProduction()))(h)

	// ── HTTP Server with timeouts ──────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  60 * time.Second, // uploads up to 500MB
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second, // Keep-alive connection timeout
	}

	// ── Graceful Shutdown ──────────────────────────────────────────────────────
	// On SIGTERM we finish in-flight requests before exiting, so no request is
	// dropped mid-save.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("editor service running", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error:", err)
		}
	}()

	<-quit
	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Forced shutdown:", err)
	}
	logger.Info("server stopped cleanly")
}
