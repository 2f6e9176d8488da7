package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"task-manager/configs"
	v1 "task-manager/internal/api/v1"
	"task-manager/internal/api/v1/handlers"
	"task-manager/internal/cache"
	"task-manager/internal/jobs"
	"task-manager/internal/middleware"
	"task-manager/internal/repository"
	"task-manager/internal/service"
	"task-manager/internal/storage"
	"task-manager/pkg/database"
	"task-manager/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configs.LoadConfig()
	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()
	logger.SystemLogger.Info("Database Connected")

	if err := repository.CreateTableIfNotExists(ctx, db); err != nil {
		logger.ErrorLogger.Fatal("Creating tables failed", zap.Error(err))
	}
	if cfg.AdminUsername != "" {
		if err := repository.CreateAdminUser(ctx, db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.ErrorLogger.Fatal("Seeding admin user failed", zap.Error(err))
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	files, err := storage.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		logger.ErrorLogger.Fatal("Upload directory unavailable", zap.Error(err))
	}

	store := repository.NewPostgresStore(db)
	queue := jobs.NewRedisQueue(redisClient, cfg.JobResultTTL)
	users := service.NewUserService(store, cache.NewRedisUsers(redisClient, cache.DefaultTTL), files, cfg.MaxAvatarSize)
	h := &handlers.Handler{
		Auth:      service.NewAuthService(store, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Users:     users,
		Tasks:     service.NewTaskService(store, queue),
		Tags:      service.NewTagService(store),
		Jobs:      service.NewJobService(queue),
		UploadDir: cfg.UploadDir,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    int(cfg.MaxAvatarSize) + 1<<20,
	})

	// Middleware
	app.Use(middleware.RequestContext())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Location, " + middleware.HeaderRequestID,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMinute,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app, h, users.Lookup)

	go func() {
		<-ctx.Done()
		logger.SystemLogger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.ErrorLogger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	logger.SystemLogger.Info("Application ready", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
