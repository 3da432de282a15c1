package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/lock"
	"github.com/ariefcatur/go-shop-checkout/internal/logx"
	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/postgres"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout/internal/scheduler"
)

// worker runs the cancel-payment jobs, the stale payment sweeper and the
// notification fanout.
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger.Named("kafka"))
	prod.Start(ctx)

	queue := scheduler.NewRedisScheduler(rdb, scheduler.QueuePayment)
	svc := &checkout.Service{
		Store:          &orders.Repo{DB: db},
		Locks:          lock.NewRedisManager(rdb, cfg.LockWait),
		Scheduler:      queue,
		Events:         prod,
		Log:            logger.Named("checkout"),
		LockTTL:        cfg.LockTTL,
		PaymentTimeout: cfg.PaymentTimeout,
		ServiceName:    cfg.ServiceName + "-worker",
	}

	jobs := scheduler.NewWorker(queue, svc.HandleJob, logger.Named("scheduler"), cfg.SchedulerPoll)
	sweeper := &checkout.Sweeper{
		Service:  svc,
		Interval: cfg.SweepInterval,
		Age:      cfg.PaymentTimeout + cfg.SweepGrace,
	}
	fanout := &notify.Fanout{Out: notify.NewRedisNotifier(rdb), Dedup: rdb, Log: logger.Named("fanout")}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.TopicPaymentNotifications, cfg.Workers, logger.Named("consumer"))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); jobs.Run(ctx) }()
	go func() { defer wg.Done(); sweeper.Run(ctx) }()
	go func() {
		defer wg.Done()
		if err := cons.Start(ctx, fanout.Handle); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down worker")
	cancel()
	wg.Wait()
	prod.Close()
	prod.WaitClosed()
}
