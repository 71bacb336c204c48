package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"bookstore-orders/internal/auth"
	"bookstore-orders/internal/catalog"
	"bookstore-orders/internal/catalog/catalog_api"
	catalogdb "bookstore-orders/internal/catalog/db"
	"bookstore-orders/internal/config"
	"bookstore-orders/internal/database/migrations"
	"bookstore-orders/internal/kafka"
	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
	"bookstore-orders/internal/order"
	orderdb "bookstore-orders/internal/order/db"
	orderkafka "bookstore-orders/internal/order/kafka"
	"bookstore-orders/internal/order/order_api"
	rediswrap "bookstore-orders/internal/order/redis"
	paymenthandlers "bookstore-orders/internal/payment/handler"
	paymentservices "bookstore-orders/internal/payment/services"
	paymentstorage "bookstore-orders/internal/payment/storage"
	"bookstore-orders/internal/promotion"
	promotiondb "bookstore-orders/internal/promotion/db"
	"bookstore-orders/internal/promotion/promotion_api"
	"bookstore-orders/internal/receipt"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	if _, err := redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	}

	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

// subscribeLockExpiry logs book locks that expired before the checkout
// released them: each one is a checkout that exceeded the lock TTL.
func subscribeLockExpiry(rdb *redis.Client, log *logger.Logger) {
	ctx := context.Background()
	pubsub := rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	log.Info("REDIS", "Subscribed to Redis keyevent expired notifications")

	go func() {
		for msg := range pubsub.Channel() {
			if strings.HasPrefix(msg.Payload, "book_lock:") {
				bookID := strings.TrimPrefix(msg.Payload, "book_lock:")
				log.Warn("BOOK_LOCK", fmt.Sprintf("Lock for book %s expired before release, checkout exceeded TTL", bookID))
			}
		}
	}()
}

func runMigrations(bunDB *bun.DB, log *logger.Logger) {
	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir != "" {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: migrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		return
	}

	// No versioned migrations configured; create the schema from the models.
	orderdb.Migrate(bunDB)
}

// noopPublisher satisfies the event publisher when Kafka is disabled.
type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(models.Order) error            { return nil }
func (noopPublisher) PublishCancelRequested(models.Order) error         { return nil }
func (noopPublisher) PublishReturnRequested(models.Order, string) error { return nil }
func (noopPublisher) PublishDeliveryCompleted(models.Order) error       { return nil }

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Order Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	runMigrations(bunDB, log)

	var events order.EventPublisher = noopPublisher{}
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.CancelRequested,
			cfg.Kafka.Topics.ReturnRequested,
			cfg.Kafka.Topics.DeliveryCompleted,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := orderkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	catalogStore := &catalogdb.DB{Bun: bunDB}
	catalogService := catalog.NewService(catalogStore, log)

	promotionService := promotion.NewService(&promotiondb.DB{Bun: bunDB}, log)

	paymentStore, err := paymentstorage.NewPostgreSQLStoreWithDB(bunDB.DB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Payment storage init failed: %v", err))
	}

	linker := order.NewStripeLinker(cfg.Stripe, log)

	orderService := order.NewOrderService(
		&orderdb.DB{Bun: bunDB, Catalog: catalogStore},
		catalogStore,
		promotionService,
		rediswrap.NewRedis(redisClient),
		events,
		paymentStore,
		linker,
		log,
	)

	receiptGen := receipt.NewGenerator(cfg.Receipt.Secret)

	orderHandler := order_api.NewHandler(orderService, receiptGen, cfg.Stripe.WebhookSecret, log)
	promotionHandler := promotion_api.NewHandler(promotionService, log)
	catalogHandler := catalog_api.NewHandler(catalogService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Post("/webhooks/stripe", orderHandler.StripeWebhook)
	r.Get("/api/books/{bookId}/availability", catalogHandler.GetAvailability)
	r.Get("/api/promotions/available", promotionHandler.ListAvailable)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			orderHandler.Routes(r)
			promotionHandler.Routes(r)
			catalogHandler.Routes(r)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	subscribeLockExpiry(redisClient, log)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go promotion.RunSweeper(sweepCtx, promotionService, cfg.Sweep.Interval, log)

	// The payment endpoints run on their own gin engine and port.
	if stripeService, err := paymentservices.NewStripeService(cfg.Stripe.SecretKey, log); err != nil {
		log.Warn("PAYMENT", fmt.Sprintf("Payment router disabled: %v", err))
	} else {
		paymentHandler := paymenthandlers.NewPaymentHandler(stripeService, paymentStore, orderService, log)
		paymentPort := os.Getenv("PAYMENT_PORT")
		if paymentPort == "" {
			paymentPort = ":8085"
		}
		go func() {
			log.Info("HTTP", fmt.Sprintf("🚀 Payment endpoints running on %s", paymentPort))
			if err := paymentHandler.Router().Run(paymentPort); err != nil {
				log.Error("HTTP", fmt.Sprintf("Payment router error: %v", err))
			}
		}()
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopSweep()
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Order Service shutdown complete")
	}
}
