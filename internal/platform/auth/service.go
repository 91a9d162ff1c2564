package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"attendance-backend/internal/platform/apierr"
	"attendance-backend/internal/platform/db"
)

const DefaultOrganizationID int64 = 1

var (
	errMissingFields      = apierr.ErrInvalid("Missing required fields")
	errMissingCredentials = apierr.ErrInvalid("Missing username or password")
	errUsernameTaken      = apierr.ErrConflict("Username already exists")
	errInvalidCredentials = apierr.ErrUnauthenticated("Invalid credentials")
)

type SignupRequest struct {
	Username       string
	Password       string
	OrganizationID int64
}

type LoginRequest struct {
	Username string
	Password string
}

type AuthService interface {
	Signup(ctx context.Context, in SignupRequest) (*User, error)
	Login(ctx context.Context, in LoginRequest) (*User, error)
}

type Service struct {
	store  UserStore
	hasher Hasher
}

func NewService(d *db.DB, hasher Hasher) *Service {
	return &Service{store: NewStore(d), hasher: hasher}
}

func NewServiceWithStore(store UserStore, hasher Hasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// NormalizeUsername trims and NFC-normalizes a username so that visually
// identical names map to the same row.
func NormalizeUsername(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func (s *Service) Signup(ctx context.Context, in SignupRequest) (*User, error) {
	name := NormalizeUsername(in.Username)
	if name == "" || in.Password == "" {
		return nil, errMissingFields
	}

	digest, err := s.hasher.Hash(in.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, apierr.ErrInvalid(err.Error())
	}
	if err != nil {
		return nil, apierr.Persistence("Signup", err)
	}

	org := in.OrganizationID
	if org <= 0 {
		org = DefaultOrganizationID
	}
	u := &User{
		Name:           name,
		PasswordDigest: digest,
		OrganizationID: org,
		Active:         true,
	}
	id, err := s.store.Create(ctx, u)
	if errors.Is(err, ErrUsernameTaken) {
		return nil, errUsernameTaken
	}
	if err != nil {
		return nil, apierr.Persistence("Signup", err)
	}
	u.ID = id
	return u, nil
}

func (s *Service) Login(ctx context.Context, in LoginRequest) (*User, error) {
	name := NormalizeUsername(in.Username)
	if name == "" || in.Password == "" {
		return nil, errMissingCredentials
	}

	u, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, apierr.Persistence("Login", err)
	}
	if u == nil || !u.Active {
		return nil, errInvalidCredentials
	}
	if !s.hasher.Verify(u.PasswordDigest, in.Password) {
		return nil, errInvalidCredentials
	}
	return u, nil
}

// ResolveActive looks up an active user by name for endpoints that act on
// behalf of a user. Unknown and disabled users are both unauthenticated.
func ResolveActive(ctx context.Context, store UserStore, op, username string) (*User, error) {
	u, err := store.FindByName(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, apierr.Persistence(op, err)
	}
	if u == nil || !u.Active {
		return nil, apierr.ErrUnauthenticated("Unknown user")
	}
	return u, nil
}
