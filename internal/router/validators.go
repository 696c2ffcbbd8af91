package router

import (
	"regexp"
	"strings"
	"sync"

	"shop_checkout/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	couponCodeRe       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	registerValidators = sync.OnceFunc(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
			return couponCodeRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation("coupontype", func(fl validator.FieldLevel) bool {
			return model.CouponType(fl.Field().String()).IsValid()
		})
	})
)
