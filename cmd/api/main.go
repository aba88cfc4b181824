package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"verification-api/internal/cache"
	"verification-api/internal/config"
	"verification-api/internal/events"
	"verification-api/internal/handlers"
	"verification-api/internal/middleware"
	"verification-api/internal/payment"
	"verification-api/internal/repository"
	"verification-api/internal/services"
	"verification-api/internal/utils"
	"verification-api/internal/verify"
	"verification-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && os.Getenv("ENV") != "docker" {
		log.Println("No .env file, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, closeStore := openStore(cfg)
	defer closeStore()

	var balanceCache services.BalanceCache
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			utils.LogError("Main", "Redis unavailable, balance cache disabled", err)
			redisCache.Close()
		} else {
			utils.LogSuccess("Main", "Balance cache connected to %s", cfg.RedisAddr)
			balanceCache = redisCache
			defer redisCache.Close()
		}
	}

	pool := worker.NewWorkerPool(cfg.WorkerCount, cfg.WorkerQueueSize, cfg.WorkerRetries)
	pool.Start()

	publisher := events.NewPublisher(cfg.RabbitMQURL)
	defer publisher.Close()
	dispatcher := services.NewEventDispatcher(pool, publisher)

	if cfg.StripeSecretKey == "" {
		utils.LogWarning("Main", "STRIPE_SECRET_KEY not set, purchases will fail")
	}
	provider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.PaymentTimeout)

	auth, err := middleware.NewAuthMiddleware(cfg.AdminSecret, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Admin secret setup failed: %v", err)
	}

	r := handlers.NewRouter(handlers.Dependencies{
		Config:     cfg,
		Keys:       services.NewKeyService(store, balanceCache, dispatcher),
		Gate:       services.NewGate(store, balanceCache),
		Settlement: services.NewSettlementService(store, provider, cfg, dispatcher),
		Checker:    verify.NewChecker(cfg.VerifyTimeout),
		Auth:       auth,
	})

	server := &fasthttp.Server{
		Handler:            r.Handler,
		Name:               "company-verification-api",
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		utils.LogSuccess("Main", "Server starting on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(":" + cfg.ServerPort); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChannel

	utils.LogInfo("Main", "Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		utils.LogError("Main", "Server forced to shutdown", err)
	}
	if err := pool.Shutdown(shutdownTimeout); err != nil {
		utils.LogError("Main", "Worker pool did not drain", err)
	}
	utils.LogSuccess("Main", "Server stopped")
}

func openStore(cfg *config.Config) (repository.Store, func()) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		utils.LogWarning("Main", "Using in-memory store: single process only, state is lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbPool.Ping(pingCtx); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}

	if err := repository.Migrate(dbPool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	utils.LogSuccess("Main", "Migrations applied successfully")

	return repository.NewPostgresStore(dbPool), dbPool.Close
}
