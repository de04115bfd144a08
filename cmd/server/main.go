package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kitstore/config"
	"kitstore/internal/api"
	"kitstore/internal/auth"
	"kitstore/internal/broker"
	"kitstore/internal/payment"
	"kitstore/internal/redisclient"
	"kitstore/internal/service"
	"kitstore/internal/store"
	"kitstore/internal/util"
	"kitstore/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting kitstore", zap.String("env", cfg.Server.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := util.InitTracer(ctx, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	logger.Info("Database connected")

	// Redis backs the catalog cache, checkout locks and webhook de-dup.
	// Each is optional, so the interfaces stay nil when Redis is unavailable.
	var (
		cache   service.Cache
		locker  service.Locker
		deduper service.WebhookDeduper
		redisOK func(context.Context) error
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache and locks", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache, locker, deduper = redisClient, redisClient, redisClient
			redisOK = redisClient.Ping
			logger.Info("Redis connected")
		}
	}

	var (
		publisher     service.LifecyclePublisher
		historyWorker *worker.OrderHistoryWorker
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		historyWorker = worker.NewOrderHistoryWorker(consumer, db)
		logger.Info("Kafka initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	paymentClient := payment.NewClient(cfg.Payment.APIURL, cfg.Payment.APIKey, cfg.Payment.Timeout)
	if !paymentClient.Configured() {
		logger.Warn("PAYMENT_API_KEY not set, checkout will use simulation mode")
	}

	verifier, err := auth.NewVerifier(auth.Options{
		Secret:       cfg.Auth.JWTSecret,
		PublicKeyPEM: cfg.Auth.JWTPublicKey,
		Audience:     cfg.Auth.Audience,
		Issuer:       cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}
	if !verifier.Configured() {
		logger.Warn("No JWT key configured, authenticated routes will reject every request")
	}

	services := api.Services{
		Items:  service.NewItemService(db, cache, cfg.Business.CatalogCacheTTL),
		Users:  service.NewUserService(db),
		Orders: service.NewOrderService(db, db, publisher),
		Checkout: service.NewCheckoutService(db, paymentClient, locker, publisher, service.CheckoutConfig{
			FrontendURL: cfg.Server.FrontendURL,
			Currency:    cfg.Payment.Currency,
			Country:     cfg.Payment.Country,
			LockTTL:     cfg.Business.CheckoutLockTTL,
		}),
		Payments: service.NewPaymentEventService(db, deduper, publisher, service.WebhookConfig{
			Secret:        cfg.Payment.WebhookSecret,
			SignatureMode: cfg.Payment.SignatureMode,
			DedupeTTL:     cfg.Business.WebhookDedupeTTL,
		}),
	}

	origins := cfg.Server.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.Server.FrontendURL}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, verifier, api.Options{
		CORSAllowedOrigins: origins,
		RateLimitRPS:       cfg.Server.RateLimitRPS,
		RateLimitBurst:     cfg.Server.RateLimitBurst,
		CatalogAdminOnly:   cfg.Auth.CatalogAdminOnly,
		SimulationEnabled:  cfg.Payment.SimulationEnabled,
		ReadinessChecks: map[string]func(context.Context) error{
			"postgres": db.Ping,
			"redis":    redisOK,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if historyWorker != nil {
		g.Go(func() error {
			return historyWorker.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if historyWorker != nil {
			if err := historyWorker.Stop(); err != nil {
				logger.Error("Error stopping history worker", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}
	logger.Info("Server exited")
}
