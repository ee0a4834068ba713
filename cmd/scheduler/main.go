package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/liontaxi/settlement-engine/internal/config"
	"github.com/liontaxi/settlement-engine/internal/repository"
	"github.com/liontaxi/settlement-engine/internal/service"
	"github.com/liontaxi/settlement-engine/pkg/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting settlement scheduler")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	settlementRepo := repository.NewSettlementRepository(db)
	partyRepo := repository.NewPartyRepository(db)
	cache := service.NewRedisCache(redisClient)
	settlementService := service.NewSettlementService(settlementRepo, partyRepo, cache, cfg)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		slog.Error("invalid scheduler timezone", "timezone", cfg.Scheduler.Timezone, "error", err)
		os.Exit(1)
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	// Schedule tasks
	if err := setupCronJobs(c, cfg, settlementService); err != nil {
		slog.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	slog.Info("scheduler started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scheduler")
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, settlements *service.SettlementService) error {
	// Repair sweep: close settlements whose participants have all paid
	_, err := c.AddFunc(cfg.Scheduler.SettleSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		settled, err := settlements.SettleCompleted(ctx)
		if err != nil {
			slog.Error("settle sweep failed", "error", err)
			return
		}
		if settled > 0 {
			slog.Info("settle sweep closed settlements", "count", settled)
		}
	})
	if err != nil {
		return err
	}

	// Nudge settlements that have been pending too long
	_, err = c.AddFunc(cfg.Scheduler.RemindSweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		reminded, err := settlements.RemindStale(ctx)
		if err != nil {
			slog.Error("remind sweep failed", "error", err)
			return
		}
		slog.Info("remind sweep finished", "reminded", reminded)
	})

	return err
}
