package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout/internal/config"
	"github.com/ariefcatur/go-shop-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/lock"
	"github.com/ariefcatur/go-shop-checkout/internal/logx"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payment"
	"github.com/ariefcatur/go-shop-checkout/internal/postgres"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logx.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka producer for domain events and notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("kafka"))
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	sched := scheduler.NewRedisScheduler(rdb, scheduler.QueuePayment)

	svc := &checkout.Service{
		Store:          repo,
		Locks:          lock.NewRedisManager(rdb, cfg.LockWait),
		Scheduler:      sched,
		Events:         prod,
		Idempotency:    checkout.NewRedisIdempotency(rdb),
		Log:            logger.Named("checkout"),
		LockTTL:        cfg.LockTTL,
		PaymentTimeout: cfg.PaymentTimeout,
		ServiceName:    cfg.ServiceName,
	}
	rec := &payment.Reconciler{
		Store:      repo,
		Scheduler:  sched,
		Notifier:   &notify.KafkaNotifier{Pub: prod, Producer: cfg.ServiceName},
		Log:        logger.Named("payment"),
		CodePrefix: cfg.PaymentCodePrefix,
	}

	router := httpx.NewRouter(logger.Named("http"))
	(&httpx.OrdersHandler{Service: svc, JWTSecret: []byte(cfg.JWTSecret), Log: logger}).Register(router)
	(&httpx.PaymentHandler{Receiver: rec, APIKey: cfg.PaymentAPIKey, Log: logger}).Register(router)
	(&httpx.EventsHandler{
		Subscribe: func(ctx context.Context, userID int64) (*notify.Subscription, error) {
			return notify.Subscribe(ctx, rdb, userID)
		},
		JWTSecret: []byte(cfg.JWTSecret),
		Log:       logger,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // stop accepting, flush the buffer
	prod.WaitClosed() // writer closed
	cancel()
}
