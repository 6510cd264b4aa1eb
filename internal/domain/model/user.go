package model

import (
	"net/mail"
	"strings"
	"time"

	"jobmatchly/internal/domain"

	"github.com/google/uuid"
)

// User is an account holder with a credit balance that never goes negative.
type User struct {
	ID        string
	Email     string
	Name      string
	Credits   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser validates the address and builds a user with the given signup balance.
func NewUser(id, email, name string, signupCredits int64) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidArgument
	}
	if signupCredits < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		Name:      strings.TrimSpace(name),
		Credits:   signupCredits,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
