package repository

import (
	"context"
	"errors"
	"time"

	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrCodeUniqueViolation = "23505"

	findUserByEmail = "SELECT id, email, password_hash, provider, created_at FROM users WHERE email = $1"
	createUser      = "INSERT INTO users (id, email, password_hash, provider, created_at) VALUES ($1, $2, $3, $4, $5)"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email user.Email) (*user.Account, error) {
	var (
		id           uuid.UUID
		stored       string
		passwordHash string
		provider     string
		createdAt    time.Time
	)
	err := r.db.QueryRow(ctx, findUserByEmail, email.Value()).Scan(&id, &stored, &passwordHash, &provider, &createdAt)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, infra.WrapRepoErr("user not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find user by email", err)
	}

	storedEmail, err := user.NewEmail(stored)
	if err != nil {
		return nil, infra.WrapRepoErr("stored user email is invalid", err)
	}
	return user.ReconstructAccount(id, storedEmail, passwordHash, user.Provider(provider), createdAt.UTC()), nil
}

func (r *UserRepository) Create(ctx context.Context, account *user.Account) error {
	_, err := r.db.Exec(ctx, createUser,
		account.ID(), account.Email().Value(), account.PasswordHash(), account.Provider().String(), account.CreatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
			return infra.WrapRepoErr("user already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create user", err)
	}
	return nil
}
