package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

// User is an account that owns cards.
type User struct {
	ID                 uuid.UUID
	Email              email.Address
	PasswordHash       krypto.Argon2Hash
	AvailableCardSlots int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Credentials are used to register and authenticate.
type Credentials struct {
	Email    email.Address
	Password Password
}

// UserFilter is used filter users.
// Returned users must match all the provided fields.
// If a field is empty or nil, it's ignored.
type UserFilter struct {
	IDs    []uuid.UUID
	Emails []email.Address
}

// Store provides access to the user store.
type Store interface {
	// CreateUser returns errorz.ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, u *User) error
	FindUsers(ctx context.Context, filter *UserFilter) ([]User, error)
	// AdjustCardSlots adds delta to the slots of the user, as long as the
	// result is not negative. It reports false otherwise.
	AdjustCardSlots(ctx context.Context, id uuid.UUID, delta int, now time.Time) (bool, error)
}
