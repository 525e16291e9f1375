package models

import "time"

type Role string

const (
	RoleBorrower Role = "borrower"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"

	// RoleNone is reported for emails without a user record. It is never stored.
	RoleNone Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserApproved  UserStatus = "approved"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	ID        string     `json:"_id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	PhotoURL  string     `json:"photoURL"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ProfileFields are the only user fields an owner may change.
type ProfileFields struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

type UserStats struct {
	TotalUsers    int `json:"totalUsers"`
	BorrowerCount int `json:"borrowerCount"`
	ManagerCount  int `json:"managerCount"`
	AdminCount    int `json:"adminCount"`
}
