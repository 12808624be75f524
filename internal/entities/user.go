package entities

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
	RoleDelivery UserRole = "delivery"
)

type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

// User is the read-only directory view the core needs for role/status checks
// and email-to-id lookup.
type User struct {
	ID     string
	Name   string
	Email  string
	Role   UserRole
	Status UserStatus
}

func (u User) ActiveDeliveryAgent() bool {
	return u.Role == RoleDelivery && u.Status == UserActive
}
