package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-order-service/config"
	"food-order-service/internal/api"
	"food-order-service/internal/broker"
	"food-order-service/internal/gateway"
	"food-order-service/internal/notify"
	"food-order-service/internal/redisclient"
	"food-order-service/internal/service"
	"food-order-service/internal/store"
	"food-order-service/internal/util"
	"food-order-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting food order service")

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.Migrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicNotifications))

	bank := gateway.NewClient(gateway.Config{
		EnrollmentURL:    cfg.Gateway.EnrollmentURL,
		ProvisionURL:     cfg.Gateway.ProvisionURL,
		MerchantID:       cfg.Gateway.MerchantID,
		MerchantPassword: cfg.Gateway.MerchantPassword,
		TerminalNo:       cfg.Gateway.TerminalNo,
		CurrencyCode:     cfg.Gateway.CurrencyCode,
		Timeout:          cfg.Gateway.Timeout,
	}, nil)

	groupSync := service.NewGroupSynchronizer(db)
	orderService := service.NewOrderService(db, cfg.Business.SplitByRestaurant)
	paymentService := service.NewPaymentService(db, bank, groupSync, redisClient, service.PaymentOptions{
		PublicBaseURL: cfg.Payment.PublicBaseURL,
		SuccessURL:    cfg.Payment.SuccessURL,
		FailureURL:    cfg.Payment.FailureURL,
		LockTTL:       cfg.Business.CallbackLockTimeout,
	})
	reconciler := service.NewReconciler(db, groupSync, cfg.Business.PendingPaymentTTL)

	var email notify.EmailSender
	if cfg.SMTP.Host != "" {
		email = notify.NewSMTPSender(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set, confirmation emails are disabled")
	}
	dispatcher := notify.NewDispatcher(db, notify.NewRedisBroadcaster(redisClient), email)

	relay := broker.NewOutboxRelay(db, producer, cfg.Outbox.BatchSize)
	scheduler, err := worker.NewScheduler(relay, cfg.Outbox.PollInterval, reconciler, cfg.Business.ReconcileInterval)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(consumer, db, dispatcher)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, paymentService, cfg.Auth.JWTSecret, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := scheduler.Stop(); err != nil {
		logger.Error("Error stopping scheduler", zap.Error(err))
	}
	workerCancel()
	if err := notificationWorker.Stop(); err != nil {
		logger.Error("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
