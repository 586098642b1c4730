package commands

import (
	"context"
	"time"

	"parkwise/internal/domain/user"
	reqdto "parkwise/internal/handler/dto/request"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/pkg/jwt"
	"parkwise/internal/usecase/shared"
)

var (
	ErrAuthenticationFailed = errs.New("authentication failed")
	ErrTokenGeneration      = errs.New("token generation failed")

	ErrInvalidCredentials = shared.ErrInvalidCredentials
	ErrEmailTaken         = shared.ErrEmailTaken
	ErrInvalidIDToken     = shared.ErrInvalidIDToken
)

type AuthResult struct {
	Identity    user.Identity
	AccessToken string
	ExpiresIn   time.Duration
}

type AuthCommands interface {
	Register(ctx context.Context, req reqdto.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req reqdto.LoginRequest) (*AuthResult, error)
	LoginFederated(ctx context.Context, req reqdto.FederatedLoginRequest) (*AuthResult, error)
	Logout(ctx context.Context, identity user.Identity, accessToken string) error
}

type authCommandsImpl struct {
	provider   shared.IdentityProvider
	jwtService *jwt.Service
}

func NewAuthCommands(provider shared.IdentityProvider, jwtService *jwt.Service) AuthCommands {
	return &authCommandsImpl{
		provider:   provider,
		jwtService: jwtService,
	}
}

func (a *authCommandsImpl) Register(ctx context.Context, req reqdto.RegisterRequest) (*AuthResult, error) {
	credentials, err := req.ToDomain()
	if err != nil {
		return nil, errs.Mark(err, ErrAuthenticationFailed)
	}

	identity, err := a.provider.Register(ctx, credentials.Email().Value(), credentials.Password().Value())
	if err != nil {
		return nil, err
	}
	return a.issue(identity)
}

func (a *authCommandsImpl) Login(ctx context.Context, req reqdto.LoginRequest) (*AuthResult, error) {
	credentials, err := req.ToDomain()
	if err != nil {
		return nil, errs.Mark(err, ErrAuthenticationFailed)
	}

	identity, err := a.provider.SignInWithPassword(ctx, credentials.Email().Value(), credentials.Password().Value())
	if err != nil {
		return nil, err
	}
	return a.issue(identity)
}

func (a *authCommandsImpl) LoginFederated(ctx context.Context, req reqdto.FederatedLoginRequest) (*AuthResult, error) {
	identity, err := a.provider.SignInWithFederated(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	return a.issue(identity)
}

// Logout ends the identity's session and revokes accessToken, so the same bearer token
// cannot open a new session afterwards.
func (a *authCommandsImpl) Logout(ctx context.Context, identity user.Identity, accessToken string) error {
	if identity.IsAnonymous() {
		return ErrAuthRequired
	}
	if accessToken != "" {
		a.jwtService.Revoke(accessToken)
	}
	return a.provider.SignOut(ctx, identity)
}

func (a *authCommandsImpl) issue(identity user.Identity) (*AuthResult, error) {
	token, err := a.jwtService.GenerateToken(identity.Email())
	if err != nil {
		return nil, errs.Mark(err, ErrTokenGeneration)
	}
	return &AuthResult{
		Identity:    identity,
		AccessToken: token,
		ExpiresIn:   a.jwtService.TokenDuration(),
	}, nil
}
