package login_test

import (
	"context"

	login "github.com/goliatone/go-login"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// testConfig implements login.Config with test defaults. The signing key is
// exactly the minimum accepted length.
type testConfig struct {
	signingKey      string
	signingMethod   string
	tokenExpiration int
	issuer          string
	audience        []string
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "0123456789abcdef0123456789abcdef",
		issuer:     "test-issuer",
		audience:   []string{"test:audience"},
	}
}

func (c testConfig) GetSigningKey() string    { return c.signingKey }
func (c testConfig) GetSigningMethod() string { return c.signingMethod }
func (c testConfig) GetContextKey() string    { return "user" }
func (c testConfig) GetTokenExpiration() int  { return c.tokenExpiration }
func (c testConfig) GetTokenLookup() string   { return "header:Authorization" }
func (c testConfig) GetAuthScheme() string    { return "Bearer" }
func (c testConfig) GetIssuer() string        { return c.issuer }
func (c testConfig) GetAudience() []string    { return c.audience }

// TestIdentity is a simple implementation of the Identity interface
type TestIdentity struct {
	id       string
	username string
	email    string
	fullName string
	status   login.UserStatus
}

func (t TestIdentity) ID() string       { return t.id }
func (t TestIdentity) Username() string { return t.username }
func (t TestIdentity) Email() string    { return t.email }
func (t TestIdentity) FullName() string { return t.fullName }
func (t TestIdentity) Status() login.UserStatus {
	if t.status == "" {
		return login.UserStatusActive
	}
	return t.status
}

// MockIdentityProvider implements login.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, username, password string) (login.Identity, error) {
	args := m.Called(ctx, username, password)
	if identity, ok := args.Get(0).(login.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByUsername(ctx context.Context, username string) (login.Identity, error) {
	args := m.Called(ctx, username)
	if identity, ok := args.Get(0).(login.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

// testLogger keeps test output quiet
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// bindCtx overrides Bind on the base MockContext so handlers receive a
// populated payload without going through a real request body
type bindCtx struct {
	*router.MockContext
	bind func(any) error
}

func (c *bindCtx) Bind(v any) error {
	if c.bind != nil {
		return c.bind(v)
	}
	return nil
}
