//go:build unit || e2e

package builder

import (
	"time"

	"parkwise/internal/domain/user"
	"parkwise/internal/usecase/queries"

	"github.com/google/uuid"
)

type UserBuilder struct {
	Email        string
	PasswordHash string
	Provider     user.Provider
}

func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		Email:        "test@example.com",
		PasswordHash: "hashed_password",
		Provider:     user.ProviderPassword,
	}
}

func (u *UserBuilder) With(mutate func(*UserBuilder)) *UserBuilder {
	mutate(u)
	return u
}

func (u *UserBuilder) BuildIdentity() (user.Identity, error) {
	email, err := user.NewEmail(u.Email)
	if err != nil {
		return user.Identity{}, err
	}
	return user.NewIdentity(email), nil
}

func (u *UserBuilder) BuildDomain() (*user.Account, error) {
	email, err := user.NewEmail(u.Email)
	if err != nil {
		return nil, err
	}
	return user.NewAccount(email, u.PasswordHash, u.Provider), nil
}

func (u *UserBuilder) BuildReadModel() *queries.AccountView {
	return &queries.AccountView{
		ID:        uuid.New(),
		Email:     u.Email,
		Provider:  u.Provider.String(),
		CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (u *UserBuilder) WithEmail(email string) *UserBuilder {
	u.Email = email
	return u
}

func (u *UserBuilder) AsFederated() *UserBuilder {
	u.Provider = user.ProviderFederated
	u.PasswordHash = ""
	return u
}
