package domain

// Role names carried in JWT claims. The full role model is owned by the user
// service; reconciliation only needs to gate its admin surface.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
