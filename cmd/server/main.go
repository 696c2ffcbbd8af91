package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shop_checkout/internal/cart"
	"shop_checkout/internal/checkout"
	"shop_checkout/internal/clock"
	"shop_checkout/internal/config"
	"shop_checkout/internal/coupon"
	"shop_checkout/internal/notify"
	"shop_checkout/internal/queue"
	"shop_checkout/internal/router"
	"shop_checkout/internal/store"
	"shop_checkout/pkg/metrics"
	rediskey "shop_checkout/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env 可选，不存在时只用进程环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	logg := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logg)

	// 1. 连接 SQLite，自动建表
	db, err := store.Open(cfg.DBPath, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	st := store.New(db)

	// 2. Redis：缓存、结算互斥、幂等键、限流、事件 outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// 降级运行：缓存/互斥/限流均为尽力而为
		logg.Warn("redis unavailable, continuing degraded", "addr", cfg.RedisAddr, "err", err)
	}
	cancelPing()

	m := metrics.New("orders")
	clk := clock.NewSystem()
	notifier := notify.NewService(st, logg)

	checkoutSvc := checkout.NewService(
		checkout.Stores{Tx: st, Carts: st, Products: st, Coupons: st, Orders: st},
		checkout.WithEvents(queue.NewStreamSink(rdb, cfg.OrderEventStream, clk)),
		checkout.WithCache(rediskey.NewOrderCache(rdb, cfg.OrderCacheTTL)),
		checkout.WithGuard(rediskey.NewCheckoutLock(rdb, cfg.CheckoutLockTTL)),
		checkout.WithClock(clk),
		checkout.WithLogger(logg),
		checkout.WithRecorder(m),
	)

	// 3. 后台任务：Stream -> Kafka -> 通知；未配置 Kafka 时 Relay 直接调用通知服务
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var pub queue.Publisher = queue.DirectPublisher{H: notifier}
	if cfg.KafkaEnabled() {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logg)
		defer producer.Close()
		pub = producer

		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, notifier, logg)
		defer consumer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(workerCtx)
		}()
	}
	relay := queue.NewRelay(rdb, pub, cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer, logg).
		WithRecorder(m)
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(workerCtx)
	}()

	// 4. HTTP
	r := gin.Default()
	router.Setup(r, router.Deps{
		Checkout:      checkoutSvc,
		Carts:         cart.NewService(st),
		Coupons:       coupon.NewService(st),
		Notifications: notifier,
		Products:      st,
		Redis:         rdb,
		Requests:      rediskey.NewRequestStates(rdb, cfg.IdempotencyTTL),
		Metrics:       m,
		OrderRate:     router.RateLimit{Limit: cfg.OrderRateLimit, Window: cfg.OrderRateWindow},
		CORSOrigins:   cfg.CORSOrigins,
		Log:           logg,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logg.Info("http listening", "addr", cfg.HTTPAddr, "kafka", cfg.KafkaEnabled())
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server error", "err", err)
		}
	case <-stopCtx.Done():
		logg.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error("server shutdown", "err", err)
	}
	stopWorkers()
	wg.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logg.Info("server stopped")
}
