package models

import "time"

// Permission names grantable to a user. Authorization decisions key off this
// set only; RoleName is a display label and carries no rights.
const (
	PermGeneral        = "general"
	PermFinanceAudit   = "finance_audit"
	PermUserManagement = "user_management"
)

// User represents an authenticated principal resolved by the identity provider.
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleName    string    `json:"role_name"`
	Permissions []string  `json:"permissions"`
	ApproverID  *int64    `json:"approver_id,omitempty"` // whose approval this user's claims require
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasPermission reports whether the user holds the named permission.
func (u *User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
