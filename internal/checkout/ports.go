package checkout

import (
	"context"

	"shop_checkout/internal/model"
)

// TxRunner 打开一个原子工作单元；fn 收到的 ctx 携带事务，
// 传给下列 Store 方法即在同一事务内执行。
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CartStore interface {
	GetCart(ctx context.Context, userID int64) (model.Cart, error)
	ListLineItems(ctx context.Context, cartID uint) ([]model.CartItem, error)
	DeleteLineItems(ctx context.Context, cartID uint) error
}

// ProductStore 的库存增减必须可在调用方事务内使用；DecrementStock 为条件扣减。
type ProductStore interface {
	GetProduct(ctx context.Context, id uint) (model.Product, error)
	DecrementStock(ctx context.Context, id uint, qty int64) error
	IncrementStock(ctx context.Context, id uint, qty int64) error
}

type CouponStore interface {
	FindActiveCoupon(ctx context.Context, code string) (model.Coupon, error)
	CountUsage(ctx context.Context, couponID uint) (int64, error)
	HasUsage(ctx context.Context, userID int64, couponID uint) (bool, error)
	RecordUsage(ctx context.Context, usage model.CouponUsage) error
	DeleteUsage(ctx context.Context, userID int64, couponID uint) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	GetOrder(ctx context.Context, id uint) (model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint, from, to model.OrderStatus) error
}

// OrderEvents 通知分发：提交后调用，失败只记日志。
type OrderEvents interface {
	NotifyOrderCreated(ctx context.Context, orderID uint, userID int64, total int64) error
	NotifyOrderUpdated(ctx context.Context, orderID uint, userID int64, status model.OrderStatus) error
}

// CacheInvalidator 读缓存失效：提交后调用，失败只记日志。
type CacheInvalidator interface {
	InvalidateUserOrders(ctx context.Context, userID int64) error
	InvalidateOrder(ctx context.Context, orderID uint) error
}

// OrderCache 读路径使用的缓存；实现同时负责失效。
// Get 返回读取时的版本号，Set 只在版本号未变时回填，
// 避免失效之前回源读到的旧数据在失效之后写回缓存。
type OrderCache interface {
	CacheInvalidator
	GetUserOrders(ctx context.Context, userID int64) (orders []model.Order, version int64, hit bool, err error)
	SetUserOrders(ctx context.Context, userID int64, orders []model.Order, version int64) (stored bool, err error)
	GetOrder(ctx context.Context, orderID uint) (o model.Order, version int64, hit bool, err error)
	SetOrder(ctx context.Context, o model.Order, version int64) (stored bool, err error)
}

// Guard 用户级结算互斥；acquired=false 表示已有结算在途。
type Guard interface {
	Lock(ctx context.Context, userID int64) (unlock func(context.Context), acquired bool, err error)
}

// Recorder 业务指标。
type Recorder interface {
	CheckoutOutcome(outcome string)
	OrderTransition(status string)
}

type nopEvents struct{}

func (nopEvents) NotifyOrderCreated(context.Context, uint, int64, int64) error           { return nil }
func (nopEvents) NotifyOrderUpdated(context.Context, uint, int64, model.OrderStatus) error { return nil }

type nopCache struct{}

func (nopCache) InvalidateUserOrders(context.Context, int64) error { return nil }
func (nopCache) InvalidateOrder(context.Context, uint) error       { return nil }
func (nopCache) GetUserOrders(context.Context, int64) ([]model.Order, int64, bool, error) {
	return nil, 0, false, nil
}
func (nopCache) SetUserOrders(context.Context, int64, []model.Order, int64) (bool, error) {
	return false, nil
}
func (nopCache) GetOrder(context.Context, uint) (model.Order, int64, bool, error) {
	return model.Order{}, 0, false, nil
}
func (nopCache) SetOrder(context.Context, model.Order, int64) (bool, error) { return false, nil }

type nopRecorder struct{}

func (nopRecorder) CheckoutOutcome(string) {}
func (nopRecorder) OrderTransition(string) {}
