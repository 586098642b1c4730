//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"parkwise/internal/domain/user"
	reqdto "parkwise/internal/handler/dto/request"
	"parkwise/internal/pkg/jwt"
	"parkwise/internal/usecase/commands"
	sharedmock "parkwise/tests/mock/shared"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type AuthCommandsTestSuite struct {
	suite.Suite
	ctx          context.Context
	mockCtrl     *gomock.Controller
	mockProvider *sharedmock.MockIdentityProvider
	jwtService   *jwt.Service
	auth         commands.AuthCommands
}

func TestAuthCommandsSuite(t *testing.T) {
	suite.Run(t, new(AuthCommandsTestSuite))
}

func (s *AuthCommandsTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.mockCtrl = gomock.NewController(s.T())
	s.mockProvider = sharedmock.NewMockIdentityProvider(s.mockCtrl)
	s.jwtService = jwt.NewService("test-secret", time.Hour)
	s.auth = commands.NewAuthCommands(s.mockProvider, s.jwtService)
}

func (s *AuthCommandsTestSuite) identity(raw string) user.Identity {
	email, err := user.NewEmail(raw)
	s.Require().NoError(err)
	return user.NewIdentity(email)
}

func (s *AuthCommandsTestSuite) TestLogin() {
	s.Run("正常系: トークンを発行", func() {
		s.mockProvider.EXPECT().
			SignInWithPassword(gomock.Any(), "u1@x.com", "secret1").
			Return(s.identity("u1@x.com"), nil)

		res, err := s.auth.Login(s.ctx, reqdto.LoginRequest{Email: "u1@x.com", Password: "secret1"})

		s.Require().NoError(err)
		s.Equal("u1@x.com", res.Identity.Email())
		s.Equal(time.Hour, res.ExpiresIn)
		claims, err := s.jwtService.ValidateToken(res.AccessToken)
		s.Require().NoError(err)
		s.Equal("u1@x.com", claims.Email)
	})

	s.Run("異常系: 認証情報が不正", func() {
		s.mockProvider.EXPECT().
			SignInWithPassword(gomock.Any(), "u1@x.com", "wrong-pass").
			Return(user.Identity{}, commands.ErrInvalidCredentials)

		_, err := s.auth.Login(s.ctx, reqdto.LoginRequest{Email: "u1@x.com", Password: "wrong-pass"})
		s.ErrorIs(err, commands.ErrInvalidCredentials)
	})

	s.Run("異常系: パスワードが短い", func() {
		_, err := s.auth.Login(s.ctx, reqdto.LoginRequest{Email: "u1@x.com", Password: "123"})
		s.ErrorIs(err, commands.ErrAuthenticationFailed)
	})
}

func (s *AuthCommandsTestSuite) TestRegister() {
	s.Run("登録済みのメール", func() {
		s.mockProvider.EXPECT().
			Register(gomock.Any(), "u1@x.com", "secret1").
			Return(user.Identity{}, commands.ErrEmailTaken)

		_, err := s.auth.Register(s.ctx, reqdto.RegisterRequest{Email: "u1@x.com", Password: "secret1"})
		s.ErrorIs(err, commands.ErrEmailTaken)
	})

	s.Run("登録してトークンを発行", func() {
		s.mockProvider.EXPECT().
			Register(gomock.Any(), "new@x.com", "secret1").
			Return(s.identity("new@x.com"), nil)

		res, err := s.auth.Register(s.ctx, reqdto.RegisterRequest{Email: "new@x.com", Password: "secret1"})
		s.Require().NoError(err)
		s.NotEmpty(res.AccessToken)
	})
}

func (s *AuthCommandsTestSuite) TestLoginFederated() {
	s.mockProvider.EXPECT().
		SignInWithFederated(gomock.Any(), "id-token").
		Return(s.identity("g@x.com"), nil)

	res, err := s.auth.LoginFederated(s.ctx, reqdto.FederatedLoginRequest{IDToken: "id-token"})
	s.Require().NoError(err)
	s.Equal("g@x.com", res.Identity.Email())
}

func (s *AuthCommandsTestSuite) TestLogout() {
	s.Run("未ログイン", func() {
		s.ErrorIs(s.auth.Logout(s.ctx, user.Identity{}, ""), commands.ErrAuthRequired)
	})

	s.Run("サインアウトを通知", func() {
		id := s.identity("u1@x.com")
		s.mockProvider.EXPECT().SignOut(gomock.Any(), id).Return(nil)
		s.NoError(s.auth.Logout(s.ctx, id, ""))
	})

	s.Run("ログアウト後のトークンは無効", func() {
		id := s.identity("u2@x.com")
		s.mockProvider.EXPECT().SignInWithPassword(gomock.Any(), "u2@x.com", "secret1").Return(id, nil)
		s.mockProvider.EXPECT().SignOut(gomock.Any(), id).Return(nil)

		res, err := s.auth.Login(s.ctx, reqdto.LoginRequest{Email: "u2@x.com", Password: "secret1"})
		s.Require().NoError(err)
		other, err := s.jwtService.GenerateToken("u2@x.com")
		s.Require().NoError(err)

		s.Require().NoError(s.auth.Logout(s.ctx, id, res.AccessToken))

		_, err = s.jwtService.ValidateToken(res.AccessToken)
		s.ErrorIs(err, jwt.ErrRevokedToken)
		_, err = s.jwtService.ValidateToken(other)
		s.NoError(err, "他のトークンには影響しない")
	})
}
