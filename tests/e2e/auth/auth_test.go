//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"parkwise/internal/handler/dto/request"
	resdto "parkwise/internal/handler/dto/response"
	"parkwise/tests/common/authtest"
	"parkwise/tests/common/dbtest"
	"parkwise/tests/common/httptest"
	"parkwise/tests/e2e"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	registerURL = "/api/auth/register"
	loginURL    = "/api/auth/login"
	logoutURL   = "/api/auth/logout"
	meURL       = "/api/auth/me"
)

type authSuite struct {
	e2e.SharedSuite
	jwtHelper *authtest.JWTHelper
}

func TestAuthSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(authSuite))
}

func (s *authSuite) SetupSuite() {
	s.SharedSuite.SetupSuite()
	s.jwtHelper = authtest.NewJWTHelper(s.Config.JWT)
}

func (s *authSuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()

	// テスト用ユーザーを作成
	dbtest.CreateTestUser(s.T(), s.DB, "test@example.com")
}

func (s *authSuite) TestRegister() {
	tests := []struct {
		name           string
		email          string
		password       string
		expectedStatus int
		description    string
	}{
		{
			name:           "正常な登録",
			email:          "new@example.com",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusCreated,
			description:    "新しいメールアドレスで登録できること",
		},
		{
			name:           "登録済みのメールアドレス",
			email:          "test@example.com",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusConflict,
			description:    "既存ユーザーのメールアドレスは拒否されること",
		},
		{
			name:           "不正なメールアドレス",
			email:          "not-an-email",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusBadRequest,
			description:    "メール形式でない値は拒否されること",
		},
		{
			name:           "短すぎるパスワード",
			email:          "short@example.com",
			password:       "123",
			expectedStatus: http.StatusBadRequest,
			description:    "6文字未満のパスワードは拒否されること",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()

			w := httptest.PerformRequest(t, s.Router, http.MethodPost, registerURL,
				request.RegisterRequest{Email: tt.email, Password: tt.password}, "")
			require.Equal(t, tt.expectedStatus, w.Code, tt.description)

			if tt.expectedStatus == http.StatusCreated {
				var res resdto.LoginResponse
				require.NoError(t, httptest.DecodeResponseBody(t, w.Body, &res))
				require.NotEmpty(t, res.AccessToken)
				require.Equal(t, tt.email, res.User.Email)

				var provider string
				err := s.DB.QueryRow(t.Context(), "SELECT provider FROM users WHERE email = $1", tt.email).Scan(&provider)
				require.NoError(t, err)
				require.Equal(t, "password", provider)
			}
		})
	}
}

func (s *authSuite) TestLogin() {
	tests := []struct {
		name           string
		email          string
		password       string
		expectedStatus int
		description    string
	}{
		{
			name:           "正常なログイン",
			email:          "test@example.com",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusOK,
			description:    "有効な認証情報でログインできること",
		},
		{
			name:           "存在しないユーザー",
			email:          "nonexistent@example.com",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusUnauthorized,
			description:    "存在しないユーザーでログインできないこと",
		},
		{
			name:           "間違ったパスワード",
			email:          "test@example.com",
			password:       "wrongpassword",
			expectedStatus: http.StatusUnauthorized,
			description:    "間違ったパスワードでログインできないこと",
		},
		{
			name:           "空のメールアドレス",
			email:          "",
			password:       authtest.DefaultPassword,
			expectedStatus: http.StatusBadRequest,
			description:    "空のメールアドレスは拒否されること",
		},
		{
			name:           "空のパスワード",
			email:          "test@example.com",
			password:       "",
			expectedStatus: http.StatusBadRequest,
			description:    "空のパスワードは拒否されること",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()

			reqBody := request.LoginRequest{
				Email:    tt.email,
				Password: tt.password,
			}

			w := httptest.PerformRequest(t, s.Router, http.MethodPost, loginURL, reqBody, "")
			require.Equal(t, tt.expectedStatus, w.Code, tt.description)

			if tt.expectedStatus == http.StatusOK {
				var loginRes resdto.LoginResponse
				require.NoError(t, httptest.DecodeResponseBody(t, w.Body, &loginRes))
				require.NotEmpty(t, loginRes.AccessToken, "アクセストークンが空")
				require.Greater(t, loginRes.ExpiresIn, int64(0), "有効期限が無効")

				cookie := httptest.ExtractCookie(w, "access_token")
				require.NotNil(t, cookie, "Cookieが設定されていない")
				require.True(t, cookie.HttpOnly)
			}
		})
	}
}

func (s *authSuite) TestLogout() {
	tests := []struct {
		name           string
		setupToken     func() string
		expectedStatus int
		description    string
	}{
		{
			name: "正常なログアウト",
			setupToken: func() string {
				return authtest.LoginUser(s.T(), s.Router, "test@example.com", authtest.DefaultPassword)
			},
			expectedStatus: http.StatusNoContent,
			description:    "有効なトークンでログアウトできること",
		},
		{
			name: "無効なトークン",
			setupToken: func() string {
				return "invalid-token"
			},
			expectedStatus: http.StatusUnauthorized,
			description:    "無効なトークンでログアウトできないこと",
		},
		{
			name: "トークンなし",
			setupToken: func() string {
				return ""
			},
			expectedStatus: http.StatusUnauthorized,
			description:    "トークンなしでログアウトできないこと",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()

			token := tt.setupToken()
			w := httptest.PerformRequest(t, s.Router, http.MethodPost, logoutURL, nil, token)
			require.Equal(t, tt.expectedStatus, w.Code, tt.description)
		})
	}

	s.Run("ログアウト済みトークンは再利用できない", func() {
		t := s.T()
		token := authtest.RegisterUser(t, s.Router, "revoked@example.com")

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, logoutURL, nil, token)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.PerformRequest(t, s.Router, http.MethodGet, "/api/lot", nil, token)
		httptest.AssertErrorKind(t, w, http.StatusUnauthorized, "invalid_token")

		w = httptest.PerformRequest(t, s.Router, http.MethodPost, logoutURL, nil, token)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func (s *authSuite) TestMe() {
	tests := []struct {
		name           string
		setupUser      func() (string, string) // email, token
		expectedStatus int
		description    string
	}{
		{
			name: "登録済みユーザーの情報取得",
			setupUser: func() (string, string) {
				email := "me@example.com"
				return email, authtest.RegisterUser(s.T(), s.Router, email)
			},
			expectedStatus: http.StatusOK,
			description:    "ログイン中ユーザーの情報が取得できること",
		},
		{
			name: "アカウントのないトークン",
			setupUser: func() (string, string) {
				return "", s.jwtHelper.GenerateToken(s.T(), "ghost@example.com")
			},
			expectedStatus: http.StatusNotFound,
			description:    "アカウントが存在しなければ404になること",
		},
		{
			name: "無効なトークン",
			setupUser: func() (string, string) {
				return "", "invalid-token"
			},
			expectedStatus: http.StatusUnauthorized,
			description:    "無効なトークンでは情報取得できないこと",
		},
		{
			name: "トークンなし",
			setupUser: func() (string, string) {
				return "", ""
			},
			expectedStatus: http.StatusUnauthorized,
			description:    "トークンなしでは情報取得できないこと",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			t := s.T()

			email, token := tt.setupUser()
			w := httptest.PerformRequest(t, s.Router, http.MethodGet, meURL, nil, token)
			require.Equal(t, tt.expectedStatus, w.Code, tt.description)

			if tt.expectedStatus == http.StatusOK {
				var res resdto.UserResponse
				require.NoError(t, httptest.DecodeResponseBody(t, w.Body, &res))
				require.Equal(t, email, res.Email)
				require.Equal(t, "password", res.Provider)
				require.NotContains(t, w.Body.String(), "password_hash", "レスポンスにパスワード情報が含まれている")
			}
		})
	}
}

func (s *authSuite) TestTokenExpiry() {
	s.Run("期限切れトークンの拒否", func() {
		t := s.T()

		expiredToken := s.jwtHelper.CreateExpiredToken(t, "test@example.com")

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, meURL, nil, expiredToken)
		require.Equal(t, http.StatusUnauthorized, w.Code, "期限切れトークンは拒否されるべき")
	})
}

func (s *authSuite) TestAuthenticationRequired() {
	s.Run("認証が必要なエンドポイント", func() {
		t := s.T()

		endpoints := []struct {
			method string
			path   string
		}{
			{http.MethodPost, logoutURL},
			{http.MethodGet, meURL},
			{http.MethodGet, "/api/lot"},
			{http.MethodGet, "/api/reservations"},
			{http.MethodPost, "/api/slots/slot-1/reservation"},
			{http.MethodDelete, "/api/slots/slot-1/reservation"},
		}

		for _, endpoint := range endpoints {
			w := httptest.PerformRequest(t, s.Router, endpoint.method, endpoint.path, nil, "")
			require.Equal(t, http.StatusUnauthorized, w.Code, "認証なしでは拒否されるべき: %s %s", endpoint.method, endpoint.path)
		}
	})
}
