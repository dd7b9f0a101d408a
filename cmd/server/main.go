package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/rentbase/billing-engine/internal/config"
	"github.com/rentbase/billing-engine/internal/handler"
	"github.com/rentbase/billing-engine/internal/lock"
	"github.com/rentbase/billing-engine/internal/notifier"
	"github.com/rentbase/billing-engine/internal/repository"
	"github.com/rentbase/billing-engine/internal/service"
	"github.com/rentbase/billing-engine/pkg/response"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Migration command (up/down)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *migrateCmd != "" {
		handleMigration(cfg, *migrateCmd)
		return
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repository, locking and notification collaborators
	agreementRepo := repository.NewAgreementRepository(db)
	locker := lock.NewRedisLocker(redisClient, cfg.GetLockTTL())
	sender := notifier.NewLogSender()
	renderer := notifier.NewTextRenderer()

	// Initialize service and handlers
	billingService := service.NewBillingService(agreementRepo, locker, sender, renderer, cfg)
	billingHandler := handler.NewBillingHandler(billingService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(billingHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      response.LoggingMiddleware(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(billingHandler *handler.BillingHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/agreements", billingHandler.CreateAgreement).Methods("POST")
	api.HandleFunc("/agreements/{agreementId}/ledger", billingHandler.GetLedger).Methods("GET")
	api.HandleFunc("/agreements/{agreementId}/payments", billingHandler.RecordPayment).Methods("POST")
	api.HandleFunc("/agreements/{agreementId}/reminders", billingHandler.TriggerReminder).Methods("POST")
	api.HandleFunc("/webhooks/payment-gateway", billingHandler.GatewayWebhook).Methods("POST")
	api.HandleFunc("/sweeps", billingHandler.RunSweep).Methods("POST")

	return router
}

func handleMigration(cfg *config.Config, command string) {
	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Database.MigrationDir),
		cfg.Database.MigrationURL(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize migrate: %v", err)
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		log.Fatalf("Invalid migration command: %s", command)
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("No migration changes to apply")
			return
		}
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}
