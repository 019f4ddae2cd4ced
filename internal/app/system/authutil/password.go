// internal/app/system/authutil/password.go
// Package authutil holds password hashing and the password policy.
package authutil

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	BcryptCost        = 12

	// PasswordSpecialChars lists the characters that satisfy the special-character rule.
	PasswordSpecialChars = "@$!%*?&#"
)

// Password validation errors
var (
	ErrPasswordTooShort  = errors.New("Password must be at least 8 characters.")
	ErrPasswordTooLong   = errors.New("Password must be less than 128 characters.")
	ErrPasswordNoUpper   = errors.New("Password must contain at least one uppercase letter.")
	ErrPasswordNoLower   = errors.New("Password must contain at least one lowercase letter.")
	ErrPasswordNoDigit   = errors.New("Password must contain at least one number.")
	ErrPasswordNoSpecial = errors.New("Password must contain at least one special character (@$!%*?&#).")
	ErrPasswordCommon    = errors.New("This password is too common. Please choose a different one.")
)

// commonPasswords are rejected even when they satisfy the character rules.
var commonPasswords = map[string]bool{
	"password1!":   true,
	"password@1":   true,
	"password123!": true,
	"welcome1!":    true,
	"welcome@123":  true,
	"qwerty123!":   true,
	"letmein1!":    true,
	"admin@123":    true,
	"abc@12345":    true,
	"iloveyou1!":   true,
}

// PasswordRules returns a human-readable description of the password rules.
func PasswordRules() string {
	return "Password must be 8 to 128 characters and include an uppercase letter, a lowercase letter, a number and one of @$!%*?&#."
}

// ValidatePassword checks if a password meets the requirements.
// Returns nil if valid, or the first rule it breaks.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSpecialChars, c):
			hasSpecial = true
		}
	}
	switch {
	case !hasUpper:
		return ErrPasswordNoUpper
	case !hasLower:
		return ErrPasswordNoLower
	case !hasDigit:
		return ErrPasswordNoDigit
	case !hasSpecial:
		return ErrPasswordNoSpecial
	}

	if commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}

	return nil
}

// prehash condenses the password to 44 bytes so bcrypt sees every byte of
// it. bcrypt refuses input over 72 bytes and MaxPasswordLength is larger.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashPassword hashes a password using bcrypt over its SHA-256 digest.
// The password should be validated with ValidatePassword first.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plain-text password with a bcrypt hash.
// Returns true if the password matches, false otherwise.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), prehash(password))
	return err == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// CheckDummy spends the same bcrypt work as CheckPassword against a hash
// nobody owns. Call it when the account does not exist so both paths take
// comparable time. It always returns false.
func CheckDummy(password string) bool {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword(prehash("no-such-account-placeholder"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, prehash(password))
	return false
}
