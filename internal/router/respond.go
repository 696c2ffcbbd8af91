package router

import (
	"errors"
	"net/http"
	"strconv"

	"shop_checkout/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	msgInternal      = "Internal server error"
	msgWriteConflict = "The request conflicted with a concurrent update, please retry"
)

func success(c *gin.Context, code int, message string, data any) {
	body := gin.H{"status": "success"}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": message})
}

// statusOf 错误分类 -> HTTP 状态码。
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageOf 对外消息；内部原因只进日志。
func messageOf(err error) string {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindInternal {
		return msgInternal
	}
	if e.Kind == apperr.KindConflict && e.Reason == apperr.ReasonWriteConflict {
		return msgWriteConflict
	}
	if e.Message == "" {
		return string(e.Reason)
	}
	return e.Message
}

func respondErr(c *gin.Context, err error) {
	code := statusOf(apperr.KindOf(err))
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, code, messageOf(err))
}

// bindErr 把参数绑定/校验错误转成面向调用方的一句话。
func bindErr(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fail(c, http.StatusBadRequest, validationMessage(ve[0]))
		return
	}
	fail(c, http.StatusBadRequest, "Invalid request body")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max", "lte":
		return fe.Field() + " must be at most " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "couponcode":
		return fe.Field() + " must be 1-64 letters, digits, dashes or underscores"
	case "coupontype":
		return fe.Field() + " must be percentage or fixed"
	default:
		return fe.Field() + " is invalid"
	}
}

// idParam 解析路径上的正整数 ID。
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
