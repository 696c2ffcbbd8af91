package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品：标题、单价、库存、所属卖家。
// checkout 只读价格/软删除标记，并在事务内条件扣减库存。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SellerID int64  `gorm:"not null;index" json:"sellerId"`
	Title    string `gorm:"size:128;not null" json:"title"`
	Price    int64  `gorm:"not null" json:"price"` // 单位：分
	// Stock 永远 >= 0，DB 层 CHECK 兜底。
	Stock int64 `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
}

func (Product) TableName() string { return "products" }
