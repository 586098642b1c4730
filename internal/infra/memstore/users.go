package memstore

import (
	"context"
	"sync"

	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
)

type UserStore struct {
	mu       sync.RWMutex
	accounts map[string]*user.Account
}

func NewUserStore() *UserStore {
	return &UserStore{accounts: make(map[string]*user.Account)}
}

func (s *UserStore) FindByEmail(_ context.Context, email user.Email) (*user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[email.Value()]
	if !ok {
		return nil, infra.WrapRepoErr("user not found", nil, infra.KindNotFound)
	}
	return acc, nil
}

func (s *UserStore) Create(_ context.Context, account *user.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := account.Email().Value()
	if _, exists := s.accounts[key]; exists {
		return infra.WrapRepoErr("user already exists", nil, infra.KindDuplicateKey)
	}
	s.accounts[key] = account
	return nil
}
