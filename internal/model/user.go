package model

import "time"

// User represents a provisioned principal as stored in the `users` table.
// Account registration and approval live outside this service; rows are
// created by the deployment's admin tooling.  The service only reads them
// to answer "is this principal authorized to act in role R".
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – role name (HOST, SECURITY or ADMIN).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Roles recognized by the service.  HOST issues visit authorizations,
// SECURITY confirms physical entry, ADMIN may do both.
const (
	RoleHost     = "HOST"
	RoleSecurity = "SECURITY"
	RoleAdmin    = "ADMIN"
)
