package bookmarket

import (
	"errors"
	"time"
)

// Role restricts what marketplace operations an account may perform.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is one of the enumerated roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User is the persistent account record. A user always has a password
// hash, a Google id, or both - never neither.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// Nil for OAuth-only accounts.
	PasswordHash *string `json:"-"`

	// Stable identifier from the OAuth provider. Nil when the account
	// has never been linked.
	GoogleID *string `json:"-"`

	// OTP and OTPExpiry are always both nil or both set.
	OTP       *string    `json:"-"`
	OTPExpiry *time.Time `json:"-"`

	// Superseded by the OTP flow. Kept so old rows still scan; no live
	// code path reads or writes them.
	ResetToken       *string    `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`

	Role Role `json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicUser is the subset of a user record safe to expose to clients.
type PublicUser struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	Role              Role      `json:"role"`
	CreatedAt         time.Time `json:"created_at"`
}

// Public returns the client-safe projection of the user.
func (u *User) Public() PublicUser {
	role := u.Role
	if role == "" {
		role = RoleBuyer
	}
	return PublicUser{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		ProfilePictureURL: u.ProfilePictureURL,
		Role:              role,
		CreatedAt:         u.CreatedAt,
	}
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("user already exists with this email")
)

// UserUpdate carries the mutable fields of a profile update. Nil fields
// are left untouched.
type UserUpdate struct {
	Name              *string
	Email             *string
	PasswordHash      *string
	GoogleID          *string
	ProfilePictureURL *string
	Role              *Role
}

// UserStore manages account records. Implementations must enforce the
// unique-email and unique-google-id invariants at the storage layer;
// that constraint is the only guard against concurrent signups racing
// on the existence check.
type UserStore interface {
	// CreateUser persists a new account. Returns ErrEmailExists when the
	// email is already taken.
	CreateUser(user *User) error

	// GetUserByID retrieves a user. Returns ErrUserNotFound when absent.
	GetUserByID(id string) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrUserNotFound
	// when absent.
	GetUserByEmail(email string) (*User, error)

	// GetUserByGoogleID retrieves a user by linked provider id. Returns
	// ErrUserNotFound when absent.
	GetUserByGoogleID(googleID string) (*User, error)

	// UpdateUser applies the non-nil fields of upd and returns the
	// updated record.
	UpdateUser(id string, upd UserUpdate) (*User, error)

	// SetOTP stores a code and its expiry on the account with the given
	// email. Both are set together.
	SetOTP(email string, otp string, expiry time.Time) error

	// ClearOTP removes the stored code and expiry together.
	ClearOTP(id string) error
}
