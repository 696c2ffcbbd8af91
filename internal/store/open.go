package store

import (
	"fmt"

	"shop_checkout/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDSN 为写事务开启 BEGIN IMMEDIATE，配合 busy_timeout 让并发写串行化，
// 避免两个事务都读到旧库存后再去争写锁。
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=1", path)
}

// Open 连接 SQLite 并自动建表。
func Open(path string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(sqlite.Open(SQLiteDSN(path)), cfg)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}
