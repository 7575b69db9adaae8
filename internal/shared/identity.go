package shared

// Role enumerates the user roles known to the system.
type Role string

const (
	// RoleVendor creates orders from the field (mobile app).
	RoleVendor Role = "vendor"
	// RoleOrderManager manages orders and deliveries.
	RoleOrderManager Role = "order_manager"
	// RoleStockManager manages products and inventory.
	RoleStockManager Role = "stock_manager"
	// RoleAdmin has full access.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVendor, RoleOrderManager, RoleStockManager, RoleAdmin:
		return true
	}
	return false
}

// Identity is the resolved caller of a request or connection.
type Identity struct {
	UserID int64
	Name   string
	Role   Role
}

// IsAdmin reports full-access privileges.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// IsOrderManager reports whether the caller may mutate order state.
func (id Identity) IsOrderManager() bool {
	return id.Role == RoleOrderManager || id.Role == RoleAdmin
}

// IsStockManager reports whether the caller may mutate product and stock state.
func (id Identity) IsStockManager() bool {
	return id.Role == RoleStockManager || id.Role == RoleAdmin
}

// IsVendor reports whether the caller is a field vendor.
func (id Identity) IsVendor() bool {
	return id.Role == RoleVendor
}
