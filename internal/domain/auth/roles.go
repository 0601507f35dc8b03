package auth

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
