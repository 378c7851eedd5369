// AngelaMos | 2026
// policy.go

package account

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/taskflow-auth/internal/config"
	"github.com/carterperez-dev/taskflow-auth/internal/core"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type Policy struct {
	validate *validator.Validate
	password config.PasswordConfig
	username config.UsernameConfig
}

type registration struct {
	Username     string `validate:"required,username_chars"`
	Email        string `validate:"omitempty,email,max=255"`
	FirstName    string `validate:"max=100"`
	LastName     string `validate:"max=100"`
	ChatUsername string `validate:"omitempty,max=64"`
}

func NewPolicy(password config.PasswordConfig, username config.UsernameConfig) *Policy {
	v := validator.New(validator.WithRequiredStructEnabled())

	//nolint:errcheck // tag name and func are static
	_ = v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return &Policy{
		validate: v,
		password: password,
		username: username,
	}
}

func (p *Policy) ValidateRegistration(in RegisterInput) error {
	if err := p.ValidateUsername(in.Username); err != nil {
		return err
	}

	err := p.validate.Struct(registration{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		ChatUsername: in.ChatUsername,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", describe(err), core.ErrInvalidInput)
	}

	return p.ValidatePassword(in.Password)
}

func (p *Policy) ValidateUsername(username string) error {
	n := len([]rune(username))
	if n < p.username.MinLength || n > p.username.MaxLength {
		return fmt.Errorf(
			"username must be %d-%d characters: %w",
			p.username.MinLength,
			p.username.MaxLength,
			core.ErrInvalidInput,
		)
	}

	if err := p.validate.Var(username, "username_chars"); err != nil {
		return fmt.Errorf(
			"username may contain only letters, digits, '_', '.' and '-': %w",
			core.ErrInvalidInput,
		)
	}

	return nil
}

func (p *Policy) ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < p.password.MinLength {
		return fmt.Errorf(
			"password must be at least %d characters: %w",
			p.password.MinLength,
			core.ErrWeakPassword,
		)
	}
	if n > p.password.MaxLength {
		return fmt.Errorf(
			"password must be at most %d characters: %w",
			p.password.MaxLength,
			core.ErrWeakPassword,
		)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case p.password.RequireUpper && !upper:
		return fmt.Errorf("password needs an uppercase letter: %w", core.ErrWeakPassword)
	case p.password.RequireLower && !lower:
		return fmt.Errorf("password needs a lowercase letter: %w", core.ErrWeakPassword)
	case p.password.RequireDigit && !digit:
		return fmt.Errorf("password needs a digit: %w", core.ErrWeakPassword)
	}

	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid registration"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "email":
		return "invalid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
