package model

import "time"

// Application roles.  Regular users own and borrow books; admins
// additionally manage the global catalog and user accounts.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents a row in the `users` table.  The json tags are used
// by admin listings; the password hash is never serialized.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  PhoneNumber  – WhatsApp-reachable phone number, required before the
//                 user's books can be requested.
//  ProfileImage – optional avatar link.
//  Role         – USER or ADMIN.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PhoneNumber  *string   `json:"phone_number,omitempty"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
