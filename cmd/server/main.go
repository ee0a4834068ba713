package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/joho/godotenv/autoload"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/liontaxi/settlement-engine/internal/config"
	"github.com/liontaxi/settlement-engine/internal/handler"
	"github.com/liontaxi/settlement-engine/internal/repository"
	"github.com/liontaxi/settlement-engine/internal/service"
	"github.com/liontaxi/settlement-engine/pkg/logging"
	"github.com/liontaxi/settlement-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	settlementRepo := repository.NewSettlementRepository(db)
	partyRepo := repository.NewPartyRepository(db)

	// Initialize services
	cache := service.NewRedisCache(redisClient)
	settlementService := service.NewSettlementService(settlementRepo, partyRepo, cache, cfg)
	partyService := service.NewPartyService(partyRepo)

	settlementHandler := handler.NewSettlementHandler(settlementService)
	partyHandler := handler.NewPartyHandler(partyService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(settlementHandler, partyHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(settlementHandler *handler.SettlementHandler, partyHandler *handler.PartyHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, response.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api").Subrouter()

	// /settlements/current must not be shadowed by the {settlementId} route
	api.HandleFunc("/settlements/current", settlementHandler.Current).Methods("GET")
	api.HandleFunc("/settlements", settlementHandler.Create).Methods("POST")
	api.HandleFunc("/settlements/{settlementId:[0-9]+}", settlementHandler.Get).Methods("GET")
	api.HandleFunc("/settlements/{settlementId:[0-9]+}/participants/{userId:[0-9]+}/pay", settlementHandler.Pay).Methods("POST")
	api.HandleFunc("/settlements/{settlementId:[0-9]+}/remind", settlementHandler.Remind).Methods("POST")

	api.HandleFunc("/taxi-party/{partyId:[0-9]+}", partyHandler.Get).Methods("GET")
	api.HandleFunc("/taxi-party/{partyId:[0-9]+}/requests", partyHandler.Requests).Methods("GET")

	return router
}
