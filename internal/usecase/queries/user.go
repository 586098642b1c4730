package queries

import (
	"context"

	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/errs"
)

var (
	ErrUserNotFound = errs.New("user not found")
	ErrAnonymous    = errs.New("identity required")
)

type UserQueries interface {
	GetCurrentUser(ctx context.Context, identity user.Identity) (*AccountView, error)
}

type AccountReadStore interface {
	FindByEmail(ctx context.Context, email user.Email) (*user.Account, error)
}

type userQueriesImpl struct {
	readStore AccountReadStore
}

func NewUserQueries(readStore AccountReadStore) UserQueries {
	return &userQueriesImpl{
		readStore: readStore,
	}
}

func (q *userQueriesImpl) GetCurrentUser(ctx context.Context, identity user.Identity) (*AccountView, error) {
	if identity.IsAnonymous() {
		return nil, ErrAnonymous
	}

	email, err := user.NewEmail(identity.Email())
	if err != nil {
		return nil, errs.Mark(err, ErrUserNotFound)
	}

	account, err := q.readStore.FindByEmail(ctx, email)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &AccountView{
		ID:        account.ID(),
		Email:     account.Email().Value(),
		Provider:  account.Provider().String(),
		CreatedAt: account.CreatedAt(),
	}, nil
}
