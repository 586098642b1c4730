package user

import (
	"time"

	"github.com/google/uuid"
)

// Identity is who the caller is for the lifetime of a session. The zero value is
// anonymous.
type Identity struct {
	email Email
}

func NewIdentity(email Email) Identity {
	return Identity{email: email}
}

func (i Identity) Email() string     { return i.email.Value() }
func (i Identity) IsAnonymous() bool { return i.email.Value() == "" }

// Account is a registered user as kept by the identity provider.
type Account struct {
	id           uuid.UUID
	email        Email
	passwordHash string
	provider     Provider
	createdAt    time.Time
}

func NewAccount(email Email, passwordHash string, provider Provider) *Account {
	return &Account{
		id:           uuid.New(),
		email:        email,
		passwordHash: passwordHash,
		provider:     provider,
		createdAt:    time.Now().UTC(),
	}
}

func ReconstructAccount(id uuid.UUID, email Email, passwordHash string, provider Provider, createdAt time.Time) *Account {
	return &Account{
		id:           id,
		email:        email,
		passwordHash: passwordHash,
		provider:     provider,
		createdAt:    createdAt,
	}
}

func (a *Account) ID() uuid.UUID        { return a.id }
func (a *Account) Email() Email         { return a.email }
func (a *Account) PasswordHash() string { return a.passwordHash }
func (a *Account) Provider() Provider   { return a.provider }
func (a *Account) CreatedAt() time.Time { return a.createdAt }
func (a *Account) Identity() Identity   { return NewIdentity(a.email) }
func (a *Account) HasPassword() bool    { return a.passwordHash != "" }
