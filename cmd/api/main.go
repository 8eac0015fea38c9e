package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"dado-auth/internal/config"
	"dado-auth/internal/db"
	"dado-auth/internal/email"
	apihttp "dado-auth/internal/http"
	"dado-auth/internal/repository"
	"dado-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("document store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	ctxPing, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if err := store.Ping(ctxPing); err != nil {
		logger.Warn("document store ping failed", zap.Error(err))
	}
	cancelPing()

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	lockout := time.Duration(cfg.MFALockoutMinutes) * time.Minute
	var (
		attempts     = service.NewMemoryAttemptLimiter(cfg.MFAMaxAttempts, lockout)
		resetLimiter = service.NewResetRateLimiter(10*time.Minute, 3)
		revocations  = service.NewMemoryRevocationStore()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiters", zap.Error(err))
		} else {
			attempts = service.NewRedisAttemptLimiter(redisClient, cfg.MFAMaxAttempts, lockout)
			resetLimiter = service.NewRedisResetRateLimiter(redisClient, 10*time.Minute, 3)
			revocations = service.NewRedisRevocationStore(redisClient)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTTTLMinutes)*time.Minute,
		revocations,
	)

	authSvc := service.NewAuthService(
		logger,
		repository.NewAccountRepository(store),
		repository.NewPendingAccountRepository(store),
		repository.NewPasswordResetRepository(store),
		repository.NewUsernameRepository(store),
		service.NewBcryptHasher(10),
		service.NewTOTPProvider(cfg.TOTPIssuer),
		emailSender,
		attempts,
		resetLimiter,
	)
	authHandler := apihttp.NewAuthHandler(logger, authSvc, jwtSvc)
	router := apihttp.NewRouter(logger, authHandler, apihttp.JWTAuthMiddleware(jwtSvc), store)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithCORS(router, cfg.CORSAllowedOrigin),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openStore abre el almacén de documentos del driver configurado y devuelve su cierre.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DocumentStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		return repository.NewPgDocumentStore(pool), pool.Close, nil

	case config.StoreDriverMongo:
		client, database, err := db.NewMongoDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() {
			ctxClose, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctxClose); err != nil {
				logger.Warn("mongo disconnect", zap.Error(err))
			}
		}
		return repository.NewMongoDocumentStore(database), closeFn, nil

	case config.StoreDriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		closeFn := func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("sqlite close", zap.Error(err))
			}
		}
		return repository.NewSQLiteDocumentStore(sqlDB), closeFn, nil

	case config.StoreDriverMemory:
		logger.Warn("using in-memory document store, data is lost on restart")
		return repository.NewMemoryDocumentStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
