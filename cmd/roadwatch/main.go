package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/roadwatch/roadwatch/internal/analyzers"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/database"
	"github.com/roadwatch/roadwatch/internal/dedup"
	"github.com/roadwatch/roadwatch/internal/events"
	"github.com/roadwatch/roadwatch/internal/handlers"
	"github.com/roadwatch/roadwatch/internal/ingest"
	"github.com/roadwatch/roadwatch/internal/jobs"
	"github.com/roadwatch/roadwatch/internal/middleware"
	"github.com/roadwatch/roadwatch/internal/notify"
	"github.com/roadwatch/roadwatch/internal/pipeline"
	"github.com/roadwatch/roadwatch/internal/queue"
	"github.com/roadwatch/roadwatch/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting RoadWatch...")

	// Artifact directories: raw uploads are private, redacted images public
	for _, dir := range []string{cfg.UploadsDir(), cfg.PublicDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory %s: %v", dir, err)
		}
	}

	// Initialize JWT authentication middleware
	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			"/api/submit",
			"/api/feed",
			"/ws/events",
			"/images/*",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Ingestion API key gate for /api/submit
	ingestKeyMiddleware := middleware.NewIngestKeyMiddleware(cfg.IngestAPIKey)
	if cfg.IngestAPIKey == "" {
		log.Printf("Warning: INGEST_API_KEY is not set, submissions will be rejected")
	}

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	db := database.GetDB()

	// Scoring configuration (router weights, fusion thresholds, redaction)
	scoring, err := config.LoadScoring(cfg.ScoringConfigPath)
	if err != nil {
		log.Fatalf("Failed to load scoring configuration: %v", err)
	}
	if cfg.ScoringConfigPath != "" {
		log.Printf("Scoring configuration loaded from %s", cfg.ScoringConfigPath)
	} else {
		log.Printf("Using built-in scoring defaults")
	}

	// Rebuild the dedup index from persisted hashes
	index := dedup.NewIndex()
	loaded, err := index.Load(db, time.Now().Add(-cfg.DedupRetention))
	if err != nil {
		log.Fatalf("Failed to load dedup index: %v", err)
	}
	log.Printf("Dedup index rebuilt with %d entries", loaded)

	// WebSocket event hub for operator tooling
	hub := events.NewHub()

	// Slack operator notifications (inert without a token)
	notifier := notify.NewNotifier(cfg.SlackToken, cfg.SlackChannel)
	if notifier.Enabled() {
		log.Printf("Slack notifications enabled on %s", cfg.SlackChannel)
	} else {
		log.Printf("Slack notifications disabled")
	}

	// Job queue
	jobQueue := queue.New(queue.Config{
		MaxAttempts:       cfg.MaxAttempts,
		BackoffBase:       cfg.BackoffBase,
		VisibilityTimeout: cfg.VisibilityTimeout,
	})
	jobQueue.SetDeadLetterHandler(func(job queue.Job) {
		if err := database.MarkNeedsAttention(db, job.IncidentUUID, "processing dead-lettered: "+job.LastError); err != nil {
			log.Printf("Failed to flag dead-lettered incident %s: %v", job.IncidentUUID, err)
		}
		hub.Broadcast(events.Event{
			Type:         events.EventJobDeadLetter,
			IncidentUUID: job.IncidentUUID,
			Data:         map[string]interface{}{"attempts": job.Attempts, "error": job.LastError},
			Timestamp:    time.Now(),
		})
		notifier.DeadLetter(job)
	})

	// Analysis collaborators
	collaborators := pipeline.Collaborators{
		Detector: analyzers.NewHTTPDetector(cfg.DetectionURL, cfg.AnalyzerTimeout),
		OCR:      analyzers.NewHTTPOCR(cfg.OCRURL, cfg.AnalyzerTimeout),
		Geocoder: analyzers.NewHTTPGeocoder(cfg.GeocodeURL, cfg.AnalyzerTimeout),
	}
	if cfg.PlaceMatchURL != "" {
		collaborators.PlaceMatcher = analyzers.NewHTTPPlaceMatcher(cfg.PlaceMatchURL, cfg.AnalyzerTimeout)
		log.Printf("Visual place matching enabled")
	} else {
		log.Printf("Visual place matching disabled (no PLACEMATCH_SERVICE_URL)")
	}

	// Services
	incidentService := services.NewIncidentService(db)
	reviewService := services.NewReviewService(db, hub)

	// Ingestion gate
	gate := ingest.NewGate(db, index, jobQueue, ingest.Config{
		UploadsDir:        cfg.UploadsDir(),
		HammingThreshold:  cfg.DedupHammingThreshold,
		Retention:         cfg.DedupRetention,
		RescoreDuplicates: cfg.RescoreDuplicates,
	})

	// Worker pool
	pool := pipeline.NewPool(db, jobQueue, collaborators, reviewService, scoring, hub, pipeline.Config{
		WorkerCount:     cfg.WorkerCount,
		AnalyzerTimeout: cfg.AnalyzerTimeout,
		PublicDir:       cfg.PublicDir(),
		PollInterval:    time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	log.Printf("Worker pool started with %d workers", cfg.WorkerCount)

	// Background maintenance loops
	stopJobs := make(chan struct{})
	go jobs.NewDedupSweeper(db, index, cfg.DedupRetention).Start(time.Hour, stopJobs)
	go jobs.NewQueueJanitor(jobQueue, cfg.JobRetention).Start(time.Minute, stopJobs)

	// Handlers
	apiHandler := handlers.NewAPIHandler(gate, incidentService, reviewService, jobQueue, hub, ingestKeyMiddleware)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)
	httpHandler := handlers.NewHTTPHandler()

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	// Redacted images only; raw uploads are never mounted
	mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(cfg.PublicDir()))))

	corsMiddleware := middleware.NewCORSMiddleware()
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Submit endpoint: http://localhost:%d/api/submit", cfg.HTTPPort)
	log.Printf("Public feed: http://localhost:%d/api/feed", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")

	close(stopJobs)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	log.Println("Shutdown complete")
}
