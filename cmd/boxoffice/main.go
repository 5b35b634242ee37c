package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-boxoffice/internal/api"
	"ms-boxoffice/internal/auth"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/jobs"
	"ms-boxoffice/internal/kafka"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/notify"
	"ms-boxoffice/internal/payment"
	"ms-boxoffice/internal/purchase"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/rabbitmq"
	"ms-boxoffice/internal/referral"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/store"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

// newNotifier picks the configured transport. The returned func releases
// the broker connection.
func newNotifier(cfg *config.Config, logger *logger.Logger) (notify.Notifier, func()) {
	switch cfg.Notify.Transport {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		topics := make([]string, 0, 4)
		for _, t := range []notify.EventType{notify.PurchaseCompleted, notify.PaymentConfirmed, notify.PaymentRefunded, notify.TicketCheckedIn} {
			topics = append(topics, cfg.Kafka.TopicPrefix+"."+string(t))
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		return &notify.BrokerNotifier{Publisher: producer, Prefix: cfg.Kafka.TopicPrefix}, func() { _ = producer.Close() }

	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Fatal("RABBITMQ", fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
		}
		return &notify.BrokerNotifier{Publisher: publisher}, publisher.Close

	default:
		logger.Info("NOTIFY", "No broker configured, notifications are only logged")
		return &notify.LogNotifier{Logger: logger}, func() {}
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, logger *logger.Logger) auth.Verifier {
	if cfg.Auth.OIDCIssuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClient)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("OIDC discovery failed for %s: %v", cfg.Auth.OIDCIssuer, err))
		}
		logger.Info("AUTH", fmt.Sprintf("Verifying tokens issued by %s", cfg.Auth.OIDCIssuer))
		return v
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("CONFIG", "either OIDC_ISSUER or JWT_SECRET must be set")
	}
	logger.Info("AUTH", "Verifying HS256 tokens with JWT_SECRET")
	return auth.NewHMACVerifier(cfg.Auth.JWTSecret, "")
}

func main() {
	appLogger := logger.NewLogger("boxoffice")
	defer appLogger.Close()

	appLogger.Info("APP", "Starting Box Office initialization")

	if err := godotenv.Load(); err != nil {
		appLogger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		appLogger.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	appLogger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx := context.Background()

	appLogger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, appLogger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(cfg.Database.DSN(), appLogger)
		if err := runner.RunMigrations(); err != nil {
			appLogger.Fatal("MIGRATE", fmt.Sprintf("Migration failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			appLogger.Warn("MIGRATE", fmt.Sprintf("Closing migration connection: %v", err))
		}
	}

	qrGen, err := qr.NewGenerator(cfg.QR.SecretKey, cfg.QR.Size)
	if err != nil {
		appLogger.Fatal("CONFIG", fmt.Sprintf("Invalid QR configuration: %v", err))
	}

	notifier, closeNotifier := newNotifier(cfg, appLogger)
	defer closeNotifier()
	asyncNotifier := notify.NewAsync(notifier, cfg.Notify.Timeout, appLogger)

	m := metrics.New()
	clk := clock.NewSystem()
	db := store.New(bunDB)

	// the per-charge timeout comes from the settings record
	gateway := &payment.Client{
		Gateway: payment.NewSimulatedGateway(cfg.Payments.SimulatedFailureRate, cfg.Payments.SimulatedLatency),
		Observe: m.GatewayCall,
		Logger:  appLogger,
	}
	settings := payment.NewSettingsStore(redisClient,
		payment.SettingsFromConfig(cfg.Payments.EnabledMethods, cfg.Payments.GatewayTimeout),
		cfg.Payments.SettingsCacheTTL, appLogger)

	inv := inventory.NewLedger(clk, appLogger)
	refs := referral.NewLedger(cfg.Referral.DefaultCommissionRate, clk, appLogger)

	purchases := purchase.NewService(db, inv, refs, gateway, settings, qrGen, asyncNotifier, m, clk, appLogger)
	refunds := refund.NewService(db, inv, refs, asyncNotifier, m, clk, appLogger)
	checkIns := checkin.NewService(db, qrGen, asyncNotifier, m, clk, appLogger)

	scheduler, err := jobs.NewScheduler(refunds, cfg.Jobs.PendingPaymentTTL, cfg.Jobs.SweepInterval, appLogger)
	if err != nil {
		appLogger.Fatal("JOBS", err.Error())
	}
	scheduler.Start()

	appLogger.Info("HTTP", "Setting up router and middleware")
	handler := &api.Handler{
		Purchases: purchases,
		Refunds:   refunds,
		CheckIns:  checkIns,
		Inventory: inv,
		DB:        db,
		QR:        qrGen,
		Settings:  settings,
		Metrics:   m,
		Logger:    appLogger,
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(handler, newVerifier(ctx, cfg, appLogger)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLogger.Info("HTTP", fmt.Sprintf("🚀 Box Office running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	appLogger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	appLogger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	if err := scheduler.Shutdown(); err != nil {
		appLogger.Error("JOBS", fmt.Sprintf("Scheduler shutdown failed: %v", err))
	}
	appLogger.Info("HTTP", "✅ Box Office shutdown complete")
}
