package login

import (
	"context"
	"reflect"

	goerrors "github.com/goliatone/go-errors"
)

// Auther composes the credential store and the token service. Login
// verifies a secret and mints a token; Authenticate resolves a presented
// token back to a live identity.
type Auther struct {
	provider       IdentityProvider
	registrar      AccountRegistrerer
	logger         Logger
	tokenService   TokenService
	tokenValidator TokenValidator
}

// NewAuthenticator returns a new Authenticator. It fails when the token
// configuration is invalid so misconfiguration surfaces at startup.
func NewAuthenticator(provider IdentityProvider, opts Config) (*Auther, error) {
	tokenService, err := NewTokenService(opts, defLogger{})
	if err != nil {
		return nil, err
	}

	a := &Auther{
		provider:     provider,
		logger:       defLogger{},
		tokenService: tokenService,
	}

	if registrar, ok := provider.(AccountRegistrerer); ok {
		a.registrar = registrar
	}

	return a, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithRegistrar sets the registration handler when the identity provider
// does not implement AccountRegistrerer itself.
func (s *Auther) WithRegistrar(registrar AccountRegistrerer) *Auther {
	s.registrar = registrar
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the secret and issues a bearer token bound to the
// username. Any credential failure maps to ErrMismatchedHashAndPassword.
func (s *Auther) Login(ctx context.Context, username, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, username, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrMismatchedHashAndPassword
	}

	if status, err := s.ensureIdentityActive(identity); err != nil {
		s.logger.Warn("Login blocked due to user status", "status", status, "error", err)
		return "", err
	}

	token, err := s.tokenService.Issue(identity.Username(), 0)
	if err != nil {
		s.logger.Error("Login token issuance error", "error", err)
		return "", err
	}

	return token, nil
}

// Authenticate validates a bearer token and resolves its subject against
// the credential store. A valid token whose record was deactivated after
// issuance fails with ErrIdentityDisabled.
func (s *Auther) Authenticate(ctx context.Context, token string) (Identity, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(token)
	if err != nil {
		s.logger.Error("Authenticate token validation failed", "error", err)
		return nil, err
	}

	subject := claims.Subject()
	if subject == "" {
		return nil, ErrTokenMalformed
	}

	identity, err := s.provider.FindIdentityByUsername(ctx, subject)
	if err != nil {
		s.logger.Error("Authenticate identity lookup failed", "error", err)
		if isNotFoundError(err) {
			// the subject no longer resolves; do not leak that detail
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, err
	}

	if status, err := s.ensureIdentityActive(identity); err != nil {
		s.logger.Warn("Authenticate blocked due to user status", "status", status, "error", err)
		return nil, err
	}

	return identity, nil
}

// Register delegates to the configured registrar and returns the created
// identity.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (Identity, error) {
	if s.registrar == nil {
		return nil, goerrors.New("no registrar configured", goerrors.CategoryInternal)
	}

	user, err := s.registrar.RegisterUser(ctx, msg)
	if err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

func (s *Auther) ensureIdentityActive(identity Identity) (UserStatus, error) {
	status, ok := identityStatus(identity)
	if !ok {
		return "", nil
	}

	if status == "" {
		status = UserStatusActive
	}

	if err := statusAuthError(status); err != nil {
		return status, err
	}

	return status, nil
}

var _ Authenticator = (*Auther)(nil)
