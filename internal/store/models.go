package store

import "time"

type Node struct {
	ID        int64
	Content   string
	ParentID  *int64
	CreatedBy *int64
	UpdatedBy *int64
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	DeletedAt *time.Time
}

type User struct {
	ID               int64
	Username         string
	Email            string
	PasswordHash     string
	Role             string
	IsEmailConfirmed bool
	IsActive         bool
	IsDeleted        bool
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserFilter narrows ListUsers. Zero values mean "no filter".
type UserFilter struct {
	Role        string
	IsActive    *bool
	Query       string // matches username or email, case-insensitive
	ExcludeRole string // visibility scoping (ADMIN never sees the SUDO)
	OnlyID      int64  // visibility scoping (USER sees only itself)
}
