package model

import "time"

// Cart 每个用户至多一个购物车，首次加购时懒创建。
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID int64      `gorm:"not null;uniqueIndex" json:"userId"`
	Items  []CartItem `gorm:"foreignKey:CartID" json:"items"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 购物车行：PriceAtAdd 是加购时的价格快照，不随商品改价变化。
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CartID     uint  `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cartId"`
	ProductID  uint  `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"productId"`
	Quantity   int64 `gorm:"not null;check:quantity >= 1" json:"quantity"`
	PriceAtAdd int64 `gorm:"not null" json:"priceAtAdd"` // 单位：分
}

func (CartItem) TableName() string { return "cart_items" }
