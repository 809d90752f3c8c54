package login

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenTTL is applied when Issue is called with a zero ttl and
// the config does not set an expiration.
const DefaultTokenTTL = 30 * time.Minute

// MinSigningKeyLength is the shortest key NewTokenService accepts.
const MinSigningKeyLength = 32

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	method     *jwt.SigningMethodHMAC
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a TokenService from config. It fails when the
// signing key is missing or weak, or when the signing method is not one of
// the supported HMAC variants. Call it during startup, not per request.
func NewTokenService(cfg Config, logger Logger) (*TokenServiceImpl, error) {
	if logger == nil {
		logger = defLogger{}
	}

	key := []byte(cfg.GetSigningKey())
	if len(key) == 0 {
		return nil, goerrors.New("token signing key is required", goerrors.CategoryBadInput).
			WithTextCode("MISSING_SIGNING_KEY")
	}

	if len(key) < MinSigningKeyLength {
		return nil, goerrors.New(
			fmt.Sprintf("token signing key must be at least %d bytes", MinSigningKeyLength),
			goerrors.CategoryBadInput,
		).WithTextCode("WEAK_SIGNING_KEY")
	}

	method, err := resolveSigningMethod(cfg.GetSigningMethod())
	if err != nil {
		return nil, err
	}

	ttl := DefaultTokenTTL
	if cfg.GetTokenExpiration() > 0 {
		ttl = time.Duration(cfg.GetTokenExpiration()) * time.Minute
	}

	return &TokenServiceImpl{
		signingKey: key,
		method:     method,
		ttl:        ttl,
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		logger:     logger,
	}, nil
}

// Issue creates a signed token binding the subject to an absolute expiry of
// now + ttl. A zero ttl applies the configured default.
func (ts *TokenServiceImpl) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrNoEmptyString
	}

	if ttl < 0 {
		return "", goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	if ttl == 0 {
		ttl = ts.ttl
	}

	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// The signature is recomputed over the claimed payload (the HMAC compare
// inside jwt/v5 is constant time) and expiry is checked separately, so a
// tampered token surfaces as a signature mismatch, never as expired.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		if t.Method.Alg() != ts.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode).
				WithCode(ErrTokenMalformed.Code)
		}
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// TTL exposes the configured default expiry
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.ttl
}

func resolveSigningMethod(name string) (*jwt.SigningMethodHMAC, error) {
	if name == "" {
		return jwt.SigningMethodHS256, nil
	}

	switch name {
	case jwt.SigningMethodHS256.Alg():
		return jwt.SigningMethodHS256, nil
	case jwt.SigningMethodHS384.Alg():
		return jwt.SigningMethodHS384, nil
	case jwt.SigningMethodHS512.Alg():
		return jwt.SigningMethodHS512, nil
	default:
		return nil, goerrors.New(
			fmt.Sprintf("unsupported signing method %q", name),
			goerrors.CategoryBadInput,
		).WithTextCode("UNSUPPORTED_SIGNING_METHOD")
	}
}
