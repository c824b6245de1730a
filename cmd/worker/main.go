package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sm-diecasting/inspection-service/internal/api"
	"github.com/sm-diecasting/inspection-service/internal/infra/classifier"
	"github.com/sm-diecasting/inspection-service/internal/infra/config"
	"github.com/sm-diecasting/inspection-service/internal/infra/email"
	"github.com/sm-diecasting/inspection-service/internal/infra/metrics"
	miniostorage "github.com/sm-diecasting/inspection-service/internal/infra/minio"
	"github.com/sm-diecasting/inspection-service/internal/infra/postgres"
	"github.com/sm-diecasting/inspection-service/internal/infra/rabbitmq"
	"github.com/sm-diecasting/inspection-service/internal/infra/tracing"
	"github.com/sm-diecasting/inspection-service/internal/infra/video"
	"github.com/sm-diecasting/inspection-service/internal/usecase"
	"github.com/sm-diecasting/inspection-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting diecasting-inspection-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		VideoBucket:   cfg.MinIOVideoBucket,
		FrameBucket:   cfg.MinIOFrameBucket,
		PresignExpiry: time.Duration(cfg.PresignExpiryMinute) * time.Minute,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	runRepo := postgres.NewRunRepository(pool)
	resultStore := postgres.NewResultStore(pool)
	counterStore := postgres.NewCounterStore(pool)
	selector := video.NewSelector(cfg.BrightnessThreshold, cfg.MotionThreshold, log)
	endpoint := classifier.NewEndpoint(classifier.EndpointConfig{
		URL:     cfg.ClassifierURL,
		Timeout: time.Duration(cfg.ClassifierTimeoutMs) * time.Millisecond,
		Workers: cfg.ClassifierWorkers,
	}, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)
	aggregator := usecase.NewProductAggregator(counterStore, cfg.GroupSize)

	// Use case
	uc := usecase.NewRunInspectionUseCase(
		runRepo, storage, storage, selector, endpoint,
		aggregator, resultStore,
		statusPub, dlqPub, notifier,
		log,
		usecase.RunInspectionConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	// Review/dashboard API
	apiSrv := api.StartServer(cfg.APIPort, api.NewServer(resultStore, storage, log), log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          cfg.RabbitMQURL,
		RequestQueue: cfg.RabbitMQRequestQueue,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		DLQ:          cfg.RabbitMQDLQ,
		Exchange:     cfg.RabbitMQExchange,
		Prefetch:     cfg.RabbitMQPrefetch,
		WorkerCount:  cfg.WorkerCount,
		BaseDelayMs:  cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("diecasting-inspection-service started, consuming requests")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)
	apiSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("diecasting-inspection-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
