package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ttss_backend/config"
	"ttss_backend/models"
	"ttss_backend/routes"
	"ttss_backend/scheduler"
	"ttss_backend/services"
	"ttss_backend/services/backtesting"
	"ttss_backend/services/datafetcher"
	"ttss_backend/services/signals"
	"ttss_backend/services/tags"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations and seed data
	if err := models.MigrateMarketModels(db); err != nil {
		log.Fatalf("Failed to migrate market models: %v", err)
	}
	if err := models.MigrateTagModels(db); err != nil {
		log.Fatalf("Failed to migrate tag models: %v", err)
	}
	if err := models.MigrateSignalModels(db); err != nil {
		log.Fatalf("Failed to migrate signal models: %v", err)
	}
	if err := models.MigrateUserModels(db); err != nil {
		log.Fatalf("Failed to migrate user models: %v", err)
	}
	log.Println("Database migrations completed")

	// Optional Mongo archive for run snapshots
	archive, err := services.InitSignalArchive(cfg.MongoURI)
	if err != nil {
		log.Printf("Signal archive unavailable, continuing without it: %v", err)
	}
	defer archive.Close()

	// Initialize services
	hub := services.InitSignalHub()
	tags.InitTagService(db)
	signals.InitFilterService(db)
	signals.InitCalculationService(db, archiveOrNil(archive), hub)
	services.InitUserConfigService(db)
	services.InitWatchlistService(db)
	services.InitStockService(db)
	backtesting.InitEngine(db)
	datafetcher.InitFetcher(db, cfg.FeedURL)

	// Start scheduled jobs
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	routes.SetupRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// archiveOrNil keeps the nil-interface pitfall out of the calculation
// service: a nil *SignalArchive must become a nil interface.
func archiveOrNil(a *services.SignalArchive) signals.Archiver {
	if a == nil {
		return nil
	}
	return a
}
