package app

import "fmt"

// Role is a user's display role. It grants nothing by itself; this package
// has no authorization layer.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Status is a user account's state.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (r Role) valid() error {
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return nil
	}
	return fmt.Errorf("%w: unknown role %q", ErrInvalid, r)
}

func (s Status) valid() error {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalid, s)
}
