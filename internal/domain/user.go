package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password accepted at signup and login
const MinPasswordLength = 6

// User represents a registered identity.
// Every User owns exactly one Account, created at signup.
type User struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// FullName returns "First Last", trimmed when the last name is empty
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Validate ensures the user adheres to domain rules
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return errors.New("user ID cannot be empty")
	}

	if strings.TrimSpace(u.FirstName) == "" {
		return errors.New("first name cannot be empty")
	}

	if err := ValidateEmail(u.Email); err != nil {
		return err
	}

	if u.PasswordHash == "" {
		return errors.New("password hash cannot be empty")
	}

	return nil
}

// NormalizeEmail lower-cases and trims an email address.
// Emails are compared in this form everywhere.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address ("a@b.c"), not a display-name form
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address")
	}
	return nil
}
