package login

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// MinPasswordLength is the registration secret policy.
const MinPasswordLength = 8

// DefaultPhoneRegion is the region used to parse phone numbers submitted
// without a country prefix.
var DefaultPhoneRegion = "US"

type RegisterUserMessage struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	FullName string `json:"full_name" form:"full_name"`
	Phone    string `json:"phone_number" form:"phone_number"`
	Password string `json:"password" form:"password"`
	// UseHashid derives the user ID deterministically from the username
	// instead of generating a random UUID
	UseHashid bool `json:"-" form:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(
			&e.Username,
			validation.Required,
			validation.Length(2, 64),
			is.Alphanumeric,
		),
		validation.Field(
			&e.Email,
			is.Email,
		),
		validation.Field(
			&e.FullName,
			validation.Length(0, 255),
		),
		validation.Field(
			&e.Password,
			validation.Required,
			validation.Length(MinPasswordLength, 128),
		),
		validation.Field(
			&e.Phone,
			validation.By(validPhoneNumber),
		),
	)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithTextCode(TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

// ToUser hashes the secret and builds the record to persist
func (e RegisterUserMessage) ToUser() (*User, error) {
	hash, err := HashPassword(e.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     normalizeUsername(e.Username),
		Email:        strings.TrimSpace(e.Email),
		FullName:     strings.TrimSpace(e.FullName),
		Phone:        normalizePhoneNumber(e.Phone),
		PasswordHash: hash,
		Status:       UserStatusActive,
	}

	if e.UseHashid {
		if id, err := hashid.NewUUID(user.Username); err == nil {
			user.ID = id
		}
	}

	return user, nil
}

func validPhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}

func normalizePhoneNumber(raw string) string {
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return raw
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
