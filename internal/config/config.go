package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string
	GinMode  string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组；为空时事件由 Relay 直接交给通知服务
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（提交后入流，Relay 异步转 Kafka）
	OrderEventStream   string
	OrderEventGroup    string
	OrderEventConsumer string

	// 下单接口限流、订单读缓存、结算互斥与幂等键
	OrderRateLimit  int
	OrderRateWindow time.Duration
	OrderCacheTTL   time.Duration
	CheckoutLockTTL time.Duration
	IdempotencyTTL  time.Duration

	CORSOrigins []string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "shop_checkout.db"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:       splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "shop-order-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "shop-notification-consumer"),
		OrderEventStream:   getEnv("ORDER_EVENT_STREAM", "shop:order_events"),
		OrderEventGroup:    getEnv("ORDER_EVENT_GROUP", "shop-relay-group"),
		OrderEventConsumer: getEnv("ORDER_EVENT_CONSUMER", "shop-relay-1"),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.OrderRateLimit, err = positiveInt("ORDER_RATE_LIMIT", 20); err != nil {
		return AppConfig{}, err
	}

	windowSec, err := positiveInt("ORDER_RATE_WINDOW_SEC", 60)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.OrderRateWindow = time.Duration(windowSec) * time.Second

	cacheSec, err := positiveInt("ORDER_CACHE_TTL_SEC", 300)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.OrderCacheTTL = time.Duration(cacheSec) * time.Second

	lockSec, err := positiveInt("CHECKOUT_LOCK_TTL_SEC", 10)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.CheckoutLockTTL = time.Duration(lockSec) * time.Second

	idemHour, err := positiveInt("IDEMPOTENCY_TTL_HOUR", 24)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.IdempotencyTTL = time.Duration(idemHour) * time.Hour

	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		return AppConfig{}, fmt.Errorf("GIN_MODE must be one of debug, release, test")
	}
	if len(cfg.KafkaBrokers) > 0 {
		if cfg.KafkaTopic == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
		}
		if cfg.KafkaGroupID == "" {
			return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
		}
	}
	if cfg.OrderEventStream == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_STREAM must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}
	if cfg.OrderEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_CONSUMER must not be empty")
	}

	return cfg, nil
}

// KafkaEnabled 是否配置了 Kafka。
func (c AppConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func positiveInt(key string, fallback int) (int, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return n, nil
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
