package login

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new password digests. Raising it only
// affects digests created afterwards; existing records keep the cost they
// were hashed with.
var BcryptCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// CompareDummyHash burns a bcrypt comparison against a throwaway digest.
// VerifyIdentity calls it when the username does not exist so the lookup
// miss takes as long as a wrong password, keeping response timing from
// revealing which usernames are registered.
func CompareDummyHash(password string) {
	dummyHashOnce.Do(func() {
		dummyHash = RandomPasswordHash()
	})
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}
