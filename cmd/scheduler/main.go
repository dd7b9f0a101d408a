package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/rentbase/billing-engine/internal/config"
	"github.com/rentbase/billing-engine/internal/lock"
	"github.com/rentbase/billing-engine/internal/notifier"
	"github.com/rentbase/billing-engine/internal/repository"
	"github.com/rentbase/billing-engine/internal/service"
)

func main() {
	log.Println("Starting billing scheduler...")

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	agreementRepo := repository.NewAgreementRepository(db)
	locker := lock.NewRedisLocker(redisClient, cfg.GetLockTTL())
	billingService := service.NewBillingService(
		agreementRepo, locker, notifier.NewLogSender(), notifier.NewTextRenderer(), cfg)

	// Initialize cron scheduler in the pinned billing timezone so "daily"
	// means the business day, not the server day.
	c := cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location()))

	_, err = c.AddFunc(cfg.Scheduler.SweepSpec, func() {
		log.Println("Running daily billing sweep...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if _, err := billingService.RunDailySweep(ctx, time.Now().In(cfg.Location())); err != nil {
			log.Printf("Daily sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Error scheduling daily sweep: %v", err)
	}

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Println("Scheduler stopped")
}
