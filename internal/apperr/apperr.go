// Package apperr 定义业务错误分类，transport 层按 Kind 映射 HTTP 状态码。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误大类。
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindForbidden
	KindConflict
	// KindInvalid 请求本身格式不合法（参数解析失败等），只在接入层产生。
	KindInvalid
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Reason 是具体原因的哨兵值，可直接用 errors.Is(err, apperr.ReasonEmptyCart) 判断。
type Reason string

func (r Reason) Error() string { return string(r) }

const (
	ReasonCartNotFound       Reason = "cart_not_found"
	ReasonOrderNotFound      Reason = "order_not_found"
	ReasonProductNotFound    Reason = "product_not_found"
	ReasonCouponNotFound     Reason = "coupon_not_found"
	ReasonEmptyCart          Reason = "empty_cart"
	ReasonProductUnavailable Reason = "product_unavailable"
	ReasonInsufficientStock  Reason = "insufficient_stock"
	ReasonCouponInvalid      Reason = "coupon_invalid"
	ReasonCouponExpired      Reason = "coupon_expired"
	ReasonCouponAlreadyUsed  Reason = "coupon_already_used"
	ReasonCouponLimitReached Reason = "coupon_limit_reached"
	ReasonCouponBelowMinimum Reason = "coupon_below_minimum"
	ReasonIllegalTransition  Reason = "illegal_transition"
	ReasonInvalidStatus      Reason = "invalid_status"
	ReasonAlreadyCancelled   Reason = "already_cancelled"
	ReasonNotPending         Reason = "not_pending"
	ReasonNotOwner           Reason = "not_owner"
	ReasonRoleRequired       Reason = "role_required"
	ReasonWriteConflict      Reason = "write_conflict"
	ReasonCheckoutInProgress Reason = "checkout_in_progress"
	ReasonDuplicate          Reason = "duplicate"
	ReasonBadRequest         Reason = "bad_request"
	ReasonStorage            Reason = "storage"
)

// Error 业务错误。Message 面向调用方；Err 为内部原因，不对外暴露。
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is 同时支持按 Reason 匹配。
func (e *Error) Is(target error) bool {
	if r, ok := target.(Reason); ok {
		return e.Reason == r
	}
	return false
}

func newErr(kind Kind, reason Reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

func NotFound(reason Reason, msg string) *Error     { return newErr(KindNotFound, reason, msg) }
func InvalidState(reason Reason, msg string) *Error { return newErr(KindInvalidState, reason, msg) }
func Forbidden(reason Reason, msg string) *Error    { return newErr(KindForbidden, reason, msg) }
func Invalid(msg string) *Error                     { return newErr(KindInvalid, ReasonBadRequest, msg) }
func Unauthorized(msg string) *Error {
	return newErr(KindUnauthorized, ReasonBadRequest, msg)
}

// Conflict 并发写冲突，可重试。
func Conflict(reason Reason, msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg, Err: cause}
}

// Internal 包装存储/基础设施错误。
func Internal(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonStorage, Message: op, Err: cause}
}

// KindOf 取出错误链上第一个 *Error 的 Kind；非业务错误一律视为 Internal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable 仅 Conflict / Internal 允许由协调器自动重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	return k == KindConflict || k == KindInternal
}
