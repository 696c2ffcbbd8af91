// Package store 基于 gorm 的持久层。事务通过 context 传递：
// WithTx 内部调用的所有方法自动复用同一个 *gorm.DB 事务句柄。
package store

import (
	"context"
	"errors"

	"shop_checkout/internal/apperr"

	"gorm.io/gorm"
)

type txKey struct{}

// Store 聚合 products / carts / coupons / orders / notifications 的数据访问。
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx 在一个数据库事务内执行 fn；ctx 中已有事务时直接复用（嵌套调用不会再开事务）。
// fn 返回错误即回滚；提交失败按存储错误归类。
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return classify("transaction", err)
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// conn 返回事务句柄（若在 WithTx 内）或普通连接。
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}
