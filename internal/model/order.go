package model

import "time"

// OrderStatus 订单状态机：
//
//	pending -> paid -> shipped -> delivered
//	pending -> cancelled
//
// delivered / cancelled 为终态。
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// forward 履约链路上的顺序；cancelled 不在链路上。
var forward = map[OrderStatus]int{
	OrderPending:   0,
	OrderPaid:      1,
	OrderShipped:   2,
	OrderDelivered: 3,
}

func (s OrderStatus) IsValid() bool {
	_, ok := forward[s]
	return ok || s == OrderCancelled
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanAdvanceTo 只允许沿履约链路向前推进（可跳级），不能回退，也不能借此取消。
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	cur, ok := forward[s]
	if !ok {
		return false
	}
	n, ok := forward[next]
	if !ok {
		return false
	}
	return n > cur
}

// Order 下单时生成，之后除 Status 外不可变；取消只改状态不删行。
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	OrderNo  string      `gorm:"size:64;uniqueIndex;not null" json:"orderNo"`
	UserID   int64       `gorm:"not null;index" json:"userId"`
	CouponID *uint       `gorm:"index" json:"couponId,omitempty"`
	Subtotal int64       `gorm:"not null" json:"subtotal"` // 单位：分
	Discount int64       `gorm:"not null;default:0" json:"discount"`
	Total    int64       `gorm:"not null;check:total >= 0" json:"total"`
	Status   OrderStatus `gorm:"size:16;not null;index" json:"status"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem 下单时的商品快照，与 products 表解耦，商品改价/下架不影响历史订单。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	OrderID      uint   `gorm:"not null;index" json:"orderId"`
	ProductID    uint   `gorm:"not null;index" json:"productId"`
	SellerID     int64  `gorm:"not null;index" json:"sellerId"`
	ProductTitle string `gorm:"size:128;not null" json:"productTitle"`
	Quantity     int64  `gorm:"not null" json:"quantity"`
	PriceAtOrder int64  `gorm:"not null" json:"priceAtOrder"`
}

func (OrderItem) TableName() string { return "order_items" }
