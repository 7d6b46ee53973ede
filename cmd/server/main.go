package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/api"
	"github.com/notifyhub/user-mail-queue/internal/config"
	"github.com/notifyhub/user-mail-queue/internal/db"
	"github.com/notifyhub/user-mail-queue/internal/mailer"
	"github.com/notifyhub/user-mail-queue/internal/metrics"
	"github.com/notifyhub/user-mail-queue/internal/notifier"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/ratelimiter"
	"github.com/notifyhub/user-mail-queue/internal/repository"
	"github.com/notifyhub/user-mail-queue/internal/service"
	"github.com/notifyhub/user-mail-queue/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	buf := queue.NewBuffer(cfg.BufferSize)
	m.RegisterBufferDepth(buf.Depth)

	store := repository.NewPgEntityStore(pool)
	queueRepo := repository.NewPgQueueRepository(pool)
	messages := repository.NewPgMessageRepository(pool)

	sender := mailer.RateLimited(newSender(cfg, logger), ratelimiter.New(cfg.RateLimit))

	var detector notifier.LastItemDetector = notifier.NewPatternDetector(queueRepo, cfg.QueueName, logger)
	if cfg.LastItemStrategy == config.LastItemCounter {
		detector = notifier.NewCounterDetector(queueRepo, detector, logger)
	}

	n := notifier.New(store, sender, detector, messages, notifier.Options{
		DefaultLangcode: cfg.DefaultLangcode,
		SystemSenderID:  cfg.SystemSenderID,
	}, logger, m.NotifierHooks())

	svc := service.NewMailJobService(store, queueRepo, cfg.QueueName, cfg.ChunkSize, logger, m.JobsScheduled.Inc)

	// ---- worker runtime ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	workers := worker.NewPool(cfg.MailWorkers, buf, queueRepo, n, logger, worker.MetricHooks{
		OnProcessed: m.WorkerHook(),
	})
	workers.Start(workerCtx)

	poller := worker.NewPoller(queueRepo, buf, cfg.QueueName, cfg.ClaimBatch, cfg.LeaseDuration, cfg.PollInterval, logger)
	go poller.Run(workerCtx)

	reaper := worker.NewLeaseReaper(queueRepo, cfg.QueueName, cfg.ReapInterval, logger)
	go reaper.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, buf, reg, pool.Ping, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("queue", cfg.QueueName),
			zap.String("last_item_strategy", cfg.LastItemStrategy),
			zap.Int("workers", cfg.MailWorkers),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new jobs.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop claiming and stop workers. Leased rows left in the buffer are
	// redelivered once their lease expires.
	cancelWorkers()

	// 3. Wait for in-flight items to finish.
	workers.Wait()

	logger.Info("server stopped cleanly")
}

func newSender(cfg *config.Config, logger *zap.Logger) mailer.Sender {
	if cfg.MailTransport == config.TransportWebhook {
		return mailer.NewWebhookSender(cfg.WebhookURL, cfg.WebhookTimeout)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:               cfg.SMTPHost,
		Port:               cfg.SMTPPort,
		User:               cfg.SMTPUser,
		Password:           cfg.SMTPPassword,
		InsecureSkipVerify: cfg.SMTPInsecureSkipVerify,
		SenderAddress:      cfg.SenderAddress,
		SenderName:         cfg.SenderName,
	}, logger)
}
