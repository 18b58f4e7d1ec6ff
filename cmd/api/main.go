package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/go-todo-api/docs" // Swagger docs
	"github.com/redmonkez12/go-todo-api/internal/auth"
	"github.com/redmonkez12/go-todo-api/internal/config"
	"github.com/redmonkez12/go-todo-api/internal/database"
	"github.com/redmonkez12/go-todo-api/internal/email"
	httpServer "github.com/redmonkez12/go-todo-api/internal/http"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/ratelimit"
	"github.com/redmonkez12/go-todo-api/internal/todo"
	"github.com/redmonkez12/go-todo-api/internal/user"
)

// @title           Todo API
// @version         1.0
// @description     Multi-user to-do service with bearer authentication and OTP password reset.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

// otpCleanupInterval is how often expired reset codes are purged
const otpCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn("Redis disabled, rate limiting is off")
	}

	tokenService, err := newTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	emailService, err := email.NewService(cfg.Email, cfg.Auth.OTPTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	userRepo := user.NewRepository(db)
	otpRepo := auth.NewOTPRepository(db, cfg.Auth.OTPTTL)
	rateLimiter := ratelimit.NewLimiter(redisClient, ratelimit.Options{
		Requests: cfg.Redis.RateLimitRequests,
		Window:   cfg.Redis.RateLimitWindow,
		Cooldown: cfg.Redis.OTPCooldown,
	})

	authService := auth.NewService(db, userRepo, otpRepo, tokenService, emailService, rateLimiter, logger, auth.Options{
		AccessTokenDuration: cfg.Auth.AccessTokenDuration,
		BcryptCost:          cfg.Auth.BcryptCost,
		EmailSendTimeout:    cfg.Email.SendTimeout,
	})
	todoService := todo.NewService(db, todo.NewRepository(db))

	router := httpServer.NewRouter(cfg, db, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, rateLimiter),
		AuthMiddleware: auth.NewMiddleware(tokenService, userRepo),
		Todo:           todo.NewHandler(todoService),
	}, logger)

	go purgeExpiredOTPs(ctx, otpRepo, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	switch cfg.TokenFormat {
	case config.TokenFormatPaseto:
		svc, err := auth.NewPasetoService(cfg.PasetoKey, cfg.AccessTokenDuration)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PASETO service: %w", err)
		}
		return svc, nil
	default:
		svc, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTokenDuration)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		return svc, nil
	}
}

// initRedis returns nil when Redis is disabled
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// purgeExpiredOTPs deletes expired reset codes at startup and then hourly
func purgeExpiredOTPs(ctx context.Context, repo *auth.OTPRepository, logger *logging.Logger) {
	ticker := time.NewTicker(otpCleanupInterval)
	defer ticker.Stop()

	for {
		n, err := repo.DeleteExpired(ctx, time.Now())
		if err != nil {
			logger.Error("failed to purge expired reset codes", "error", err.Error())
		} else if n > 0 {
			logger.Info("purged expired reset codes", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
