package users

import "time"

// User represents a user account referenced by workflow assignments.
type User struct {
	ID        int64
	Username  string
	Email     string
	FullName  string
	Role      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a new user.
type CreateInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     string
}
