package response

import (
	"time"

	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type IdentityResponse struct {
	Email string `json:"email"`
}

type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"`
	User        IdentityResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

func FromAuthResult(r *commands.AuthResult) *LoginResponse {
	return &LoginResponse{
		AccessToken: r.AccessToken,
		ExpiresIn:   int64(r.ExpiresIn / time.Second),
		User:        IdentityResponse{Email: r.Identity.Email()},
	}
}

func FromAccountView(v *queries.AccountView) (*UserResponse, error) {
	var res UserResponse
	if err := copier.Copy(&res, v); err != nil {
		return nil, err
	}
	return &res, nil
}
