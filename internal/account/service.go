package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/errorz"
	"github.com/willemschots/cardhub/internal/krypto"
)

var (
	ErrDuplicateUser      = errors.New("duplicate user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNegativeSlots      = errors.New("card slots can not become negative")
)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// SignupCardSlots is the number of card slots a new user starts with.
	SignupCardSlots int
}

// Service manages user accounts and their card slots.
type Service struct {
	store Store
	cfg   ServiceConfig

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, cfg ServiceConfig) (*Service, error) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		return nil, err
	}

	hash, err := krypto.HashArgon2(tok[:])
	if err != nil {
		return nil, err
	}

	return &Service{
		store:          s,
		cfg:            cfg,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// Register creates a new user with the configured number of card slots.
func (s *Service) Register(ctx context.Context, c Credentials) (User, error) {
	if c.Email == "" {
		return User{}, errorz.InvalidInput{errorz.Keyed{Key: "email", Err: email.ErrInvalidEmail}}
	}

	pwdHash, err := c.Password.Hash()
	if err != nil {
		return User{}, errorz.InvalidInput{errorz.Keyed{Key: "password", Err: ErrInvalidPassword}}
	}

	now := s.NowFunc()
	u := User{
		ID:                 uuid.New(),
		Email:              c.Email,
		PasswordHash:       pwdHash,
		AvailableCardSlots: s.cfg.SignupCardSlots,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.store.CreateUser(ctx, &u)
	if errors.Is(err, errorz.ErrDuplicate) {
		return User{}, ErrDuplicateUser
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// Authenticate returns the user matching the credentials, or
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{
		Emails: []email.Address{c.Email},
	})
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 {
		// Compare anyway so unknown emails take as long as wrong passwords.
		_ = c.Password.Match(s.comparisonHash)
		return User{}, ErrInvalidCredentials
	}

	if !c.Password.Match(users[0].PasswordHash) {
		return User{}, ErrInvalidCredentials
	}

	return users[0], nil
}

// Get returns the user with the ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	users, err := s.store.FindUsers(ctx, &UserFilter{
		IDs: []uuid.UUID{id},
	})
	if err != nil {
		return User{}, err
	}

	if len(users) != 1 {
		return User{}, errorz.ErrNotFound
	}

	return users[0], nil
}

// AdjustCardSlots grants (positive delta) or revokes (negative delta) card
// slots, used when a subscription changes. Slots never become negative.
func (s *Service) AdjustCardSlots(ctx context.Context, id uuid.UUID, delta int) (User, error) {
	ok, err := s.store.AdjustCardSlots(ctx, id, delta, s.NowFunc())
	if err != nil {
		return User{}, err
	}

	if !ok {
		// Either the user does not exist or the slots would go negative.
		_, err := s.Get(ctx, id)
		if err != nil {
			return User{}, err
		}
		return User{}, ErrNegativeSlots
	}

	return s.Get(ctx, id)
}
