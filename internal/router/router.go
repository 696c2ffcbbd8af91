package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"shop_checkout/internal/cart"
	"shop_checkout/internal/checkout"
	"shop_checkout/internal/coupon"
	"shop_checkout/internal/middleware"
	"shop_checkout/internal/model"
	"shop_checkout/internal/notify"
	"shop_checkout/pkg/metrics"
	rediskey "shop_checkout/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// ProductStore 商品目录读写。
type ProductStore interface {
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// RateLimit 下单接口限流参数；Redis 为空时不限流。
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Deps 路由依赖。Redis / Requests / Metrics 可为空，对应功能随之关闭。
type Deps struct {
	Checkout      *checkout.Service
	Carts         *cart.Service
	Coupons       *coupon.Service
	Notifications *notify.Service
	Products      ProductStore

	Redis     *rd.Client
	Requests  *rediskey.RequestStates
	Metrics   *metrics.Metrics
	OrderRate RateLimit

	CORSOrigins []string
	Log         *slog.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	registerValidators()

	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "pong"})
	})

	api := r.Group("/", middleware.Authenticate())

	o := &orderHandlers{svc: d.Checkout, requests: d.Requests, log: d.Log}
	orders := api.Group("/orders")
	create := []gin.HandlerFunc{}
	if d.Redis != nil && d.OrderRate.Limit > 0 {
		create = append(create, middleware.RedisRateLimit(d.Redis, "orders", d.OrderRate.Limit, d.OrderRate.Window))
	}
	orders.POST("", append(create, o.create)...)
	orders.GET("", o.list)
	orders.GET("/:id", o.get)
	orders.PUT("/:id", o.updateStatus)
	orders.DELETE("/:id", o.cancel)

	ch := &cartHandlers{svc: d.Carts}
	carts := api.Group("/cart")
	carts.GET("", ch.get)
	carts.DELETE("", ch.clear)
	carts.POST("/items", ch.add)
	carts.PUT("/items/:productId", ch.update)
	carts.DELETE("/items/:productId", ch.remove)

	issuers := middleware.RequireRole(model.RoleSeller, model.RoleAdmin)
	cp := &couponHandlers{svc: d.Coupons}
	coupons := api.Group("/coupons")
	coupons.POST("", issuers, cp.create)
	coupons.GET("", middleware.RequireRole(model.RoleAdmin), cp.list)
	coupons.GET("/mine", issuers, cp.mine)
	coupons.GET("/:id", cp.get)
	coupons.PUT("/:id", cp.update)
	coupons.DELETE("/:id", cp.remove)

	ph := &productHandlers{st: d.Products}
	r.GET("/products", ph.list)
	api.POST("/products", issuers, ph.create)

	nh := &notificationHandlers{svc: d.Notifications}
	api.GET("/notifications", nh.list)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, middleware.HeaderUserID, middleware.HeaderUserRole, headerIdempotencyKey)
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
