package checkout

import (
	"strings"

	"shop_checkout/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Subtotal = Σ quantity × 加购时价格快照。
func Subtotal(items []model.CartItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.Quantity * it.PriceAtAdd
	}
	return sum
}

// Discount 纯函数，不修改任何券状态：
//   - percentage: subtotal*value/100（四舍五入到分），有 MaxDiscount 时封顶
//   - fixed: min(value, subtotal)
//
// 结果始终落在 [0, subtotal]，保证 total 不为负。
func Discount(subtotal int64, c *model.Coupon) int64 {
	if c == nil || subtotal <= 0 {
		return 0
	}
	var amount int64
	switch c.Type {
	case model.CouponPercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(c.Value)).
			Div(hundred).
			Round(0).
			IntPart()
		if c.MaxDiscount != nil && amount > *c.MaxDiscount {
			amount = *c.MaxDiscount
		}
	case model.CouponFixed:
		amount = min(c.Value, subtotal)
	}
	return max(0, min(amount, subtotal))
}

// NormalizeCode 券码统一去空格转大写，与建券时一致。
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FormatAmount 分转成两位小数的字符串，用于提示文案。
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
