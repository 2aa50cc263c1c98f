package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payment-service/internal/app/payments"
	"payment-service/internal/config"
	payments_http "payment-service/internal/handler/http/payments"
	kafka_handler "payment-service/internal/handler/kafka"
	"payment-service/internal/infrastructure/database"
	kafka_infra "payment-service/internal/infrastructure/kafka"
	"payment-service/internal/infrastructure/metrics"
	"payment-service/internal/outbox"
	"payment-service/internal/repository/outbox_repo"
	outbox_postgres "payment-service/internal/repository/outbox_repo/postgres"
	"payment-service/internal/repository/payments_repo"
	payments_memory "payment-service/internal/repository/payments_repo/memory"
	payments_postgres "payment-service/internal/repository/payments_repo/postgres"
)

const (
	dbConnectAttempts = 10
	dbRetryDelay      = 5 * time.Second
	kafkaSetupTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the payments HTTP API and background workers",
	Long: `Start the payments HTTP API.

With STORE_BACKEND=postgres migrations are applied on boot. With KAFKA_ENABLED=true
the outbox processor publishes payment status events and, when
KAFKA_PAYMENT_REQUESTS_TOPIC is set, payment requests are consumed from Kafka.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer appLogger.Sync()
	appLogger.Info("Payment Service starting...", zap.String("version", Version), zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db         *sql.DB
		store      payments_repo.PaymentRepository
		outboxRepo outbox_repo.OutboxRepository
	)
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		appLogger.Info("Waiting for database to be available...")
		db, err = database.ConnectWithRetry(ctx, cfg.GetDBConnectionString(), dbConnectAttempts, dbRetryDelay, appLogger)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()

		if err := runMigrations(cfg, appLogger.With(zap.String("component", "Migrations")), (*migrate.Migrate).Up); err != nil {
			return err
		}

		var writer payments_postgres.OutboxWriter
		if cfg.KafkaEnabled {
			outboxRepo = outbox_postgres.NewOutboxRepository()
			writer = outboxRepo
		}
		store = payments_postgres.NewPaymentRepository(db, writer, cfg.KafkaPaymentEventsTopic)
	default:
		appLogger.Warn("Using in-memory payment store; data is lost on restart.")
		store = payments_memory.NewPaymentRepository()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	resolver := payments.NewRandomOutcomeResolver(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.PaymentSuccessRate)
	paymentService := payments.NewPaymentService(
		store,
		resolver,
		appLogger.With(zap.String("component", "PaymentService")),
		payments.WithMetrics(metrics.NewPaymentMetrics(registry)),
	)
	appLogger.Info("Payment Service initialized.", zap.Float64("success_rate", resolver.SuccessRate()))

	router := payments_http.NewRouter(paymentService, appLogger, payments_http.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: 30 * time.Second,
		Gatherer:       registry,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var workers sync.WaitGroup
	if cfg.KafkaEnabled {
		closeKafka, err := startKafkaWorkers(ctx, &workers, cfg, db, outboxRepo, paymentService, appLogger)
		if err != nil {
			return err
		}
		defer closeKafka()
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down application...")
	case err := <-serverErr:
		stop()
		if err != nil {
			appLogger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		appLogger.Info("Background workers stopped.")
	case <-shutdownCtx.Done():
		appLogger.Warn("Background workers did not stop within the shutdown timeout.")
	}

	appLogger.Info("Application gracefully shut down.")
	return nil
}

// startKafkaWorkers launches the outbox processor (postgres only) and the payment request
// consumer (when a requests topic is configured). The returned func releases Kafka clients.
func startKafkaWorkers(
	ctx context.Context,
	workers *sync.WaitGroup,
	cfg *config.Config,
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	paymentService payments.PaymentService,
	appLogger *zap.Logger,
) (func(), error) {
	brokers := cfg.GetKafkaBrokers()
	topics := []string{cfg.KafkaPaymentEventsTopic}
	if cfg.KafkaPaymentRequestsTopic != "" {
		topics = append(topics, cfg.KafkaPaymentRequestsTopic)
	}

	setupCtx, cancel := context.WithTimeout(ctx, kafkaSetupTimeout)
	defer cancel()
	if err := kafka_infra.EnsureTopics(setupCtx, brokers, topics, appLogger); err != nil {
		return nil, fmt.Errorf("failed to ensure Kafka topics: %w", err)
	}

	var closers []func()

	if db != nil && outboxRepo != nil {
		producer := kafka_infra.NewProducer(brokers, appLogger.With(zap.String("component", "KafkaProducer")))
		closers = append(closers, func() {
			if err := producer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			}
		})

		processor := outbox.NewProcessor(
			db,
			outboxRepo,
			producer,
			cfg.KafkaPaymentEventsTopic,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			processor.Start(ctx)
		}()
	}

	if cfg.KafkaPaymentRequestsTopic != "" {
		consumer := kafka_infra.NewConsumer(
			brokers,
			cfg.KafkaPaymentRequestsTopic,
			cfg.KafkaConsumerGroup,
			kafka_handler.PaymentRequestedMessageHandler(paymentService, appLogger.With(zap.String("component", "PaymentRequestedHandler"))),
			appLogger.With(zap.String("component", "PaymentRequestsConsumer")),
		)
		closers = append(closers, func() {
			if err := consumer.Close(); err != nil {
				appLogger.Error("Error closing payment requests consumer", zap.Error(err))
			}
		})

		workers.Add(1)
		go func() {
			defer workers.Done()
			appLogger.Info("Starting payment requests consumer...", zap.String("topic", cfg.KafkaPaymentRequestsTopic))
			err := consumer.Consume(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrGroupClosed) {
				appLogger.Error("Payment requests consumer failed", zap.Error(err))
			}
			appLogger.Info("Payment requests consumer stopped.")
		}()
	}

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
