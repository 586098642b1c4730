//go:build unit || e2e

package authtest

import (
	"net/http"
	"testing"

	"parkwise/internal/handler/dto/request"
	"parkwise/tests/common/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const DefaultPassword = "password123"

func LoginUser(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()

	w := httptest.PerformRequest(t, router, http.MethodPost, "/api/auth/login",
		request.LoginRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	return accessToken(t, httptest.ExtractCookie(w, "access_token"))
}

// RegisterUser creates a password account through the API and returns its access token.
func RegisterUser(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()

	w := httptest.PerformRequest(t, router, http.MethodPost, "/api/auth/register",
		request.RegisterRequest{Email: email, Password: DefaultPassword}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return accessToken(t, httptest.ExtractCookie(w, "access_token"))
}

func LogoutUser(t *testing.T, router *gin.Engine, cookies []*http.Cookie) {
	t.Helper()

	w := httptest.PerformRequestWithCookies(t, router, http.MethodPost, "/api/auth/logout", nil, cookies, "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func accessToken(t *testing.T, c *http.Cookie) string {
	t.Helper()
	require.NotNil(t, c, "Access token not found in cookies")
	require.NotEmpty(t, c.Value, "Access token cookie is empty")
	return c.Value
}
