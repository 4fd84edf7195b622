package client

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Form validation errors. Returned before any network or offline-store call.
var (
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailInvalid    = errors.New("please enter a valid email address")
	ErrPasswordMissing = errors.New("password is required")
	ErrPasswordWeak    = errors.New("password must be at least 8 characters with an uppercase letter, a lowercase letter, and a digit")
	ErrNameInvalid     = errors.New("name must be at least 2 letters, letters and spaces only")
)

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

func validateLoginForm(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordMissing
	}
	return nil
}

func validateRegistrationForm(name, email, password string) error {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return ErrNameInvalid
	}
	for _, ch := range name {
		if !unicode.IsLetter(ch) && !unicode.IsSpace(ch) {
			return ErrNameInvalid
		}
	}

	if err := validateEmail(email); err != nil {
		return err
	}

	if len(password) < 8 {
		return ErrPasswordWeak
	}
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return ErrPasswordWeak
	}
	return nil
}
