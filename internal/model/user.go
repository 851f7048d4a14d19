package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Each field corresponds to a column in the
// database.  Handlers define their own response types so the
// password hash never leaves the server.
//
// Fields:
//
//	ID           - primary key identifier of the user.
//	Name         - display name.
//	Email        - unique email address.
//	PasswordHash - bcrypt hashed password.
//	Phone        - optional phone number.
//	Role         - admin, organizer or customer.
//	CreatedAt    - timestamp of creation.
//	UpdatedAt    - timestamp of last update.
type User struct {
	ID           uint64    `db:"id"`            // users.id
	Name         string    `db:"name"`          // users.name
	Email        string    `db:"email"`         // users.email
	PasswordHash string    `db:"password_hash"` // users.password_hash
	Phone        *string   `db:"phone"`         // users.phone (nullable)
	Role         Role      `db:"role"`          // users.role
	CreatedAt    time.Time `db:"created_at"`    // users.created_at
	UpdatedAt    time.Time `db:"updated_at"`    // users.updated_at
}
