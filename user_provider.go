package login

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AccountRegistrerer is the interface we need to handle new user registrations
type AccountRegistrerer interface {
	RegisterUser(ctx context.Context, msg RegisterUserMessage) (*User, error)
}

// UserProvider resolves and verifies identities against a UserStore
type UserProvider struct {
	store  UserStore
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the user, compare the password, and return the
// identity. A missing username and a wrong password return the same error,
// and the missing-username path still pays for a bcrypt comparison so the
// two cases are indistinguishable by timing.
func (u *UserProvider) VerifyIdentity(ctx context.Context, username, password string) (Identity, error) {
	user, err := u.store.GetByUsername(ctx, username)
	if err != nil {
		if isNotFoundError(err) {
			CompareDummyHash(password)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if err := ensureAuthenticatableUser(user); err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

// FindIdentityByUsername resolves a username to its identity without
// checking credentials. Callers use it after token validation.
func (u *UserProvider) FindIdentityByUsername(ctx context.Context, username string) (Identity, error) {
	user, err := u.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	user.EnsureStatus()

	return identityFromUser(user), nil
}

// RegisterUser validates the payload, hashes the secret, and persists the
// record. Duplicate usernames fail with ErrDuplicateIdentity and leave the
// existing record untouched.
func (u *UserProvider) RegisterUser(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	user, err := msg.ToUser()
	if err != nil {
		return nil, err
	}

	created, err := u.store.Register(ctx, user)
	if err != nil {
		if goerrors.Is(err, ErrDuplicateIdentity) {
			return nil, ErrDuplicateIdentity
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist user")
	}

	u.logger.Info("registered user", "username", created.Username)

	return created, nil
}

var (
	_ IdentityProvider   = (*UserProvider)(nil)
	_ AccountRegistrerer = (*UserProvider)(nil)
)
