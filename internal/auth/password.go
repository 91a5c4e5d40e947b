package auth

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials hides whether the user or the password was wrong.
var ErrBadCredentials = errors.New("invalid username or password")

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`).MatchString
	hasLower   = regexp.MustCompile(`[a-z]`).MatchString
	hasNumber  = regexp.MustCompile(`[0-9]`).MatchString
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=]`).MatchString
)

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a candidate password.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrBadCredentials
	}
	return nil
}

// ValidatePasswordStrength checks password complexity.
func ValidatePasswordStrength(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}

	checks := 0
	for _, match := range []func(string) bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if match(password) {
			checks++
		}
	}
	if checks < 3 {
		return errors.New("password must contain at least 3 of: uppercase, lowercase, numbers, special characters")
	}
	return nil
}
