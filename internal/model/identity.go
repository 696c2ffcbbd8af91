package model

// Role 调用方角色，由网关解析后注入。
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleSeller || r == RoleAdmin
}

// Identity 已认证的调用方。
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin 特权角色：可改任意订单状态、查看/取消任意订单。
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanAccessOrder 订单属主或特权角色。
func (i Identity) CanAccessOrder(o Order) bool {
	return i.IsAdmin() || o.UserID == i.UserID
}
