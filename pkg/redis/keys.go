package redis

import "fmt"

const keyPrefix = "shop"

// UserOrdersKey 用户订单列表缓存。
func UserOrdersKey(userID int64) string {
	return fmt.Sprintf("%s:orders:user:%d", keyPrefix, userID)
}

// OrderKey 单个订单（含明细）缓存。
func OrderKey(orderID uint) string {
	return fmt.Sprintf("%s:orders:id:%d", keyPrefix, orderID)
}

// UserOrdersVersionKey 用户订单列表缓存版本号，每次失效 +1。
func UserOrdersVersionKey(userID int64) string {
	return fmt.Sprintf("%s:orders:ver:user:%d", keyPrefix, userID)
}

// OrderVersionKey 单个订单缓存版本号，每次失效 +1。
func OrderVersionKey(orderID uint) string {
	return fmt.Sprintf("%s:orders:ver:id:%d", keyPrefix, orderID)
}

// CheckoutLockKey 同一用户同一时刻只允许一个结算在途。
func CheckoutLockKey(userID int64) string {
	return fmt.Sprintf("%s:checkout:lock:%d", keyPrefix, userID)
}

// RequestStateKey 客户端 Idempotency-Key 对应的结算状态。
func RequestStateKey(userID int64, idemKey string) string {
	return fmt.Sprintf("%s:checkout:idem:%d:%s", keyPrefix, userID, idemKey)
}

// RateLimitKey 限流窗口；subject 为 user:<id> 或 ip:<addr>。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("%s:rate_limit:%s:%s", keyPrefix, scope, subject)
}
