package config

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

// BaseConfig is the root configuration container. go-config hydrates it
// from config files and environment overrides before the app boots.
type BaseConfig struct {
	Server      Server      `json:"server" yaml:"server"`
	Auth        Auth        `json:"auth" yaml:"auth"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
}

type Server struct {
	Address string `json:"address" yaml:"address"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

type Auth struct {
	SigningKey      string   `json:"signing_key" yaml:"signing_key"`
	SigningMethod   string   `json:"signing_method" yaml:"signing_method"`
	ContextKey      string   `json:"context_key" yaml:"context_key"`
	TokenExpiration int      `json:"token_expiration" yaml:"token_expiration"`
	TokenLookup     string   `json:"token_lookup" yaml:"token_lookup"`
	AuthScheme      string   `json:"auth_scheme" yaml:"auth_scheme"`
	Issuer          string   `json:"issuer" yaml:"issuer"`
	Audience        []string `json:"audience" yaml:"audience"`
}

type Persistence struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
	// Seed loads the bundled demo accounts on boot. Keep it off outside
	// local development.
	Seed bool `json:"seed" yaml:"seed"`
}

// Validate applies defaults and fails fast on settings the auth stack
// cannot boot without. Called by go-config after hydration.
func (c *BaseConfig) Validate() error {
	if c.Server.Address == "" {
		c.Server.Address = ":8978"
	}

	if c.Persistence.DSN == "" {
		c.Persistence.DSN = "file:login.db?cache=shared&_pragma=foreign_keys(1)"
	}

	return validation.ValidateStruct(c,
		validation.Field(&c.Auth, validation.Required),
	)
}

func (c *BaseConfig) GetServer() Server {
	return c.Server
}

func (c *BaseConfig) GetAuth() Auth {
	return c.Auth
}

func (c *BaseConfig) GetPersistence() Persistence {
	return c.Persistence
}

// Validate makes Auth usable as an ozzo validatable field.
func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&a.TokenExpiration, validation.Min(0)),
	)
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetSigningMethod() string {
	return a.SigningMethod
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

// GetTokenExpiration is expressed in minutes
func (a Auth) GetTokenExpiration() int {
	return a.TokenExpiration
}

func (a Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization"
	}
	return a.TokenLookup
}

func (a Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	return p.DSN
}
