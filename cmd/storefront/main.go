package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront/internal/app/fulfillment"
	"storefront/internal/config"
	"storefront/internal/domain"
	http_fulfillment "storefront/internal/handler/http/fulfillment"
	"storefront/internal/infrastructure/database"
	"storefront/internal/infrastructure/kafka"
	"storefront/internal/infrastructure/openai"
	"storefront/internal/infrastructure/pdf"
	"storefront/internal/infrastructure/redis"
	"storefront/internal/infrastructure/stripe"
	"storefront/internal/outbox"
	"storefront/internal/repository/order_repo"
	memory_order_repo "storefront/internal/repository/order_repo/memory"
	postgres_order_repo "storefront/internal/repository/order_repo/postgres"
	"storefront/internal/repository/outbox_repo"
	memory_outbox_repo "storefront/internal/repository/outbox_repo/memory"
	postgres_outbox_repo "storefront/internal/repository/outbox_repo/postgres"
)

const downloadsPrefix = "/downloads"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Storefront starting...", zap.String("domain", cfg.Domain))

	if cfg.OpenAI.APIKey == "" {
		appLogger.Warn("OPENAI_API_KEY is not set; deliverables will contain fallback content")
	}
	if cfg.Stripe.SecretKey == "" {
		appLogger.Warn("STRIPE_SECRET_KEY is not set; checkout and payment verification will fail")
	}

	var (
		orderRepository  order_repo.OrderRepository
		outboxRepository outbox_repo.OutboxRepository
	)
	switch cfg.OrderStore {
	case config.StorePostgres:
		db := connectPostgres(cfg, appLogger)
		defer func() {
			if err := db.Close(); err != nil {
				appLogger.Error("Error closing database connection", zap.Error(err))
			} else {
				appLogger.Info("Database connection closed.")
			}
		}()
		runMigrations(cfg, appLogger)

		orderRepository = postgres_order_repo.NewOrderRepository(db, appLogger)
		if cfg.EventsEnabled {
			outboxRepository = postgres_outbox_repo.NewOutboxRepository(db, appLogger)
		}
	default:
		appLogger.Info("Using in-memory order store; orders are lost on restart")
		orderRepository = memory_order_repo.NewOrderRepository(appLogger)
		if cfg.EventsEnabled {
			outboxRepository = memory_outbox_repo.NewOutboxRepository()
		}
	}

	var locker fulfillment.Locker = fulfillment.NewKeyedLocker()
	if cfg.Locker == config.LockerRedis {
		redisLocker, err := redis.NewLocker(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.LockTTL,
			appLogger.With(zap.String("component", "RedisLocker")))
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if cfg.EventsEnabled {
		kafkaProducer, err := kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			} else {
				appLogger.Info("Kafka producer closed.")
			}
		}()

		processor := outbox.NewProcessor(outboxRepository, kafkaProducer, cfg.OutboxPollInterval, cfg.OutboxPollTimeout,
			appLogger.With(zap.String("component", "OutboxProcessor")))
		go processor.Run(rootCtx)
	}

	gateway := stripe.NewGateway(stripe.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		APIURL:        cfg.Stripe.APIURL,
	}, appLogger.With(zap.String("component", "StripeGateway")))

	generator := openai.NewGenerator(openai.Config{
		APIKey: cfg.OpenAI.APIKey,
		URL:    cfg.OpenAI.BaseURL,
		Model:  cfg.OpenAI.Model,
	}, appLogger.With(zap.String("component", "OpenAIGenerator")))

	packager := pdf.NewPackager(cfg.DownloadsDir, downloadsPrefix, appLogger.With(zap.String("component", "PDFPackager")))

	fulfillmentService := fulfillment.NewFulfillmentService(
		orderRepository,
		outboxRepository,
		gateway,
		generator,
		packager,
		locker,
		fulfillment.Settings{
			BaseURL: cfg.Domain,
			Product: domain.DefaultProduct,
			Generation: domain.GenerationOptions{
				Model:          cfg.OpenAI.Model,
				MaxOutputUnits: cfg.OpenAI.MaxTokens,
				Temperature:    cfg.OpenAI.Temperature,
			},
			GatewayTimeout:    cfg.GatewayTimeout,
			GenerationTimeout: cfg.GenerationTimeout,
			PackagingTimeout:  cfg.PackagingTimeout,
			EventsTopic:       cfg.KafkaFulfillmentTopic,
		},
		appLogger.With(zap.String("component", "FulfillmentService")),
	)

	var webhookParser http_fulfillment.WebhookParser
	if cfg.Stripe.WebhookSecret != "" {
		webhookParser = gateway
	} else {
		appLogger.Info("STRIPE_WEBHOOK_SECRET is not set; webhook endpoint disabled")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	http_fulfillment.RegisterRoutes(r, fulfillmentService, webhookParser, appLogger)

	r.Handle(downloadsPrefix+"/*", http.StripPrefix(downloadsPrefix+"/", http.FileServer(http.Dir(cfg.DownloadsDir))))
	r.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// Finalize runs generation and packaging inline.
		WriteTimeout: cfg.PipelineBudget() + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Storefront started", zap.String("address", serverAddr))

	<-sigChan

	appLogger.Info("Shutting down storefront...")
	stopBackground()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Storefront graceful shutdown failed", zap.Error(err))
		return
	}
	appLogger.Info("Storefront stopped.")
}

func newLogger(level string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zapConfig.Level = lvl
	return zapConfig.Build()
}

func connectPostgres(cfg *config.Config, appLogger *zap.Logger) *sql.DB {
	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.DBHost,
		Port:     cfg.DBConfig.DBPort,
		User:     cfg.DBConfig.DBUser,
		Password: cfg.DBConfig.DBPassword,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.DBSSLMode,
	}

	var (
		db  *sql.DB
		err error
	)
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			return db
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	return nil
}

func runMigrations(cfg *config.Config, appLogger *zap.Logger) {
	appLogger.Info("Running database migrations...")
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDBMigrationConnectionString())
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")
}
