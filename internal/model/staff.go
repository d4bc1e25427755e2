package model

import "time"

// StaffUser is a gate-staff account used to authenticate scanner
// devices.  Customer accounts live in the external user system; only
// staff operating this service's endpoints are stored here.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique login email.
//	PasswordHash – bcrypt hashed password.
//	Role         – STAFF or ADMIN.
//	IsActive     – whether the account may log in.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type StaffUser struct {
	ID           uint64    // staff_users.id
	Email        string    // staff_users.email
	PasswordHash string    // staff_users.password_hash
	Role         string    // staff_users.role
	IsActive     bool      // staff_users.is_active
	CreatedAt    time.Time // staff_users.created_at
	UpdatedAt    time.Time // staff_users.updated_at
}
