// Package checkout 结算核心：购物车 -> 订单的原子事务、订单状态机以及订单查询。
package checkout

import (
	"context"
	"log/slog"
	"time"

	"shop_checkout/internal/clock"

	"golang.org/x/sync/singleflight"
)

const (
	// maxCheckoutAttempts 首次执行 + 冲突/内部错误时重试一次。
	maxCheckoutAttempts = 2
	sideEffectTimeout   = 3 * time.Second
)

// Stores 结算依赖的持久层，通常由同一个 *store.Store 满足。
type Stores struct {
	Tx       TxRunner
	Carts    CartStore
	Products ProductStore
	Coupons  CouponStore
	Orders   OrderStore
}

type Service struct {
	tx       TxRunner
	carts    CartStore
	products ProductStore
	coupons  CouponStore
	orders   OrderStore

	events  OrderEvents
	cache   OrderCache
	guard   Guard
	clk     clock.Clock
	log     *slog.Logger
	metrics Recorder

	sf singleflight.Group
}

type Option func(*Service)

func WithEvents(e OrderEvents) Option { return func(s *Service) { s.events = e } }
func WithCache(c OrderCache) Option   { return func(s *Service) { s.cache = c } }
func WithGuard(g Guard) Option        { return func(s *Service) { s.guard = g } }
func WithClock(c clock.Clock) Option  { return func(s *Service) { s.clk = c } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}
func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }

func NewService(st Stores, opts ...Option) *Service {
	s := &Service{
		tx:       st.Tx,
		carts:    st.Carts,
		products: st.Products,
		coupons:  st.Coupons,
		orders:   st.Orders,
		events:   nopEvents{},
		cache:    nopCache{},
		clk:      clock.NewSystem(),
		log:      slog.Default(),
		metrics:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// detached 提交后的副作用不受请求取消影响，但有独立超时。
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}
