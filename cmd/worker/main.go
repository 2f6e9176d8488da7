package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"task-manager/configs"
	"task-manager/internal/jobs"
	"task-manager/internal/notify"
	"task-manager/internal/repository"
	"task-manager/internal/storage"
	"task-manager/pkg/database"
	"task-manager/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := configs.LoadConfig()
	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.ErrorLogger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	files, err := storage.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		logger.ErrorLogger.Fatal("Upload directory unavailable", zap.Error(err))
	}

	worker := jobs.NewWorker(jobs.NewRedisQueue(redisClient, cfg.JobResultTTL), cfg.WorkerConcurrency)
	h := &notify.Handlers{
		Store:   repository.NewPostgresStore(db),
		Mailer:  notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, cfg.SMTPTimeout),
		Storage: files,
	}
	h.Register(worker)

	if err := worker.Run(ctx); err != nil {
		logger.ErrorLogger.Fatal("Worker failed", zap.Error(err))
	}
}
