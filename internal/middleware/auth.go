package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"shop_checkout/internal/model"

	"github.com/gin-gonic/gin"
)

// 网关完成鉴权后注入的身份头。
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	identityKey = "identity"
)

// Authenticate 从可信网关头解析调用方身份；缺失或非法时返回 401。
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		uid, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || uid <= 0 {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		role := model.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		if role == "" {
			role = model.RoleUser
		}
		if !role.IsValid() {
			abort(c, http.StatusUnauthorized, "Invalid user role")
			return
		}
		c.Set(identityKey, model.Identity{UserID: uid, Role: role})
		c.Next()
	}
}

// RequireRole 必须在 Authenticate 之后使用。
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, ok := IdentityFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !slices.Contains(roles, who.Role) {
			abort(c, http.StatusForbidden, "You do not have permission to perform this action")
			return
		}
		c.Next()
	}
}

// IdentityFrom 取出 Authenticate 注入的身份。
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return model.Identity{}, false
	}
	who, ok := v.(model.Identity)
	return who, ok
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": msg})
}
