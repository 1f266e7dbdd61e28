package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/observability"
	"github.com/fjod/go_cart/storefront/internal/repository"
	s "github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/tracing"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat)
	slog.SetDefault(log)

	ctx := context.Background()

	tp, err := tracing.Setup(ctx, tracing.Config{
		ServiceName: "storefront",
		Environment: cfg.AppEnv,
		Exporter:    cfg.TracingExporter,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		log.Error("failed to set up tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer provider shutdown failed", slog.Any("error", err))
		}
	}()
	log.Info("tracing enabled", slog.String("exporter", cfg.TracingExporter))

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Error("failed to connect to MongoDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	log.Info("connected to MongoDB", slog.String("database", cfg.MongoDBName))

	products := repository.NewProductRepository(mongoDB)
	customers := repository.NewCustomerRepository(mongoDB)
	if err := products.CreateIndexes(ctx); err != nil {
		log.Warn("product index creation failed", slog.Any("error", err))
	}
	if err := customers.CreateIndexes(ctx); err != nil {
		log.Warn("customer index creation failed", slog.Any("error", err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.EventsEnabled() {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		log.Info("publishing basket events", slog.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	basketCache := c.NewBreakerCache(c.NewRedisCache(redisClient), log)
	basketService := s.NewBasketService(customers, products, basketCache, publisher, log)
	catalogService := s.NewCatalogService(products)
	authService := s.NewAuthService(customers)

	sessions := session.NewManager(redisClient, session.DefaultCookieName, cfg.SessionTTL, cfg.SessionSecure)
	metrics := observability.NewMetrics()

	router := h.NewRouter(h.RouterConfig{
		Logger:         log,
		Sessions:       sessions,
		Metrics:        metrics,
		Products:       h.NewProductHandler(catalogService, cfg.RequestTimeout),
		Cart:           h.NewCartHandler(basketService, metrics, cfg.RequestTimeout),
		Auth:           h.NewAuthHandler(authService, sessions, log, cfg.RequestTimeout),
		AllowedOrigins: cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Production:     cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", slog.String("port", cfg.HTTPPort), slog.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}

	log.Info("server exited")
}
