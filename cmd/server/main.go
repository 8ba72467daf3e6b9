package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"marketplace/internal/config"
	handlers "marketplace/internal/controllers/http"
	"marketplace/internal/domain"
	"marketplace/internal/infra"
	mmysql "marketplace/internal/infra/mysql"
	"marketplace/internal/infra/providers"
	"marketplace/internal/infra/rabbitmq"
	mysqlrepo "marketplace/internal/repository/mysql"
	"marketplace/internal/resilience"
	"marketplace/internal/services"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func main() {
	cfg := config.FromEnv()

	db, err := mmysql.NewMySQLFromEnv(
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderStatusHistory{},
		&domain.Payment{},
		&domain.Refund{},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	orderRepo := mysqlrepo.NewOrderRepository(db)
	paymentRepo := mysqlrepo.NewPaymentRepository(db)

	invBreaker := resilience.NewCircuitBreaker("inventory", cfg.Breaker)
	invClient := infra.NewInventoryClient(cfg.InventoryURL, cfg.InventoryTimeout, invBreaker, cfg.Retry)

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, "marketplace.events")
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer publisher.Close()

	orderSvc := services.NewOrderService(orderRepo, invClient, publisher)

	if cfg.RedisHost != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisHost + ":6379",
			PoolSize:     100,
			MinIdleConns: 10,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		orderSvc.SetRedisClient(redisClient)
	}

	stripe := providers.NewStripeProvider(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	paypal := providers.NewPaypalProvider(cfg.Paypal.BaseURL, cfg.Paypal.SecretKey, cfg.Paypal.WebhookSecret)
	registry := providers.NewRegistry(stripe, paypal)

	providerBreaker := resilience.NewCircuitBreaker("payment-provider", cfg.Breaker)
	paymentSvc := services.NewPaymentService(paymentRepo, orderRepo, registry, orderSvc, providerBreaker, publisher)

	health := resilience.NewHealthAggregator(3 * time.Second)
	health.Register("mysql", func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	})
	health.Register("inventory", func(ctx context.Context) error {
		return invClient.Health(ctx)
	})

	handler := handlers.NewHandler(orderSvc, paymentSvc, health)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	logger.Info().Str("port", cfg.Port).Msg("starting order service")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server run failed")
	}
}
