package auth

import "time"

// UserType is the coarse access tier. Admin-type accounts bypass status
// gating and every department check.
type UserType string

const (
	TypeAdmin UserType = "Admin"
	TypeUser  UserType = "User"
)

// Role is the department-level access tag. Meaningful only when the
// account type is User.
type Role string

const (
	RoleSuper   Role = "super"
	RoleFinance Role = "Finance"
	RoleHR      Role = "HR"
	RoleSales   Role = "Sales"
)

// Status is the admission state of a signup. Non-Admin accounts can only
// log in once an administrator has moved them to accepted.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// User is a registered account. Email is the identity key and unique.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Type         UserType  `json:"type"`
	Role         Role      `json:"role,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate carries a partial update. Nil fields are left untouched.
type UserUpdate struct {
	Name     *string
	Avatar   *string
	Password *string
	Type     *UserType
	Role     *Role
	Status   *Status
}

// ValidType reports whether t is a known user type.
func ValidType(t UserType) bool {
	return t == TypeAdmin || t == TypeUser
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleSuper, RoleFinance, RoleHR, RoleSales:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known admission status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}
