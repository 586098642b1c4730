package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"parkwise/internal/domain/user"
	"parkwise/internal/handler/httperr"
	"parkwise/internal/pkg/cookie"
	"parkwise/internal/usecase"
	"parkwise/internal/usecase/commands"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokenValidator usecase.TokenValidator
}

const (
	ctxIdentityKey = "identity"
	ctxTokenKey    = "access_token"
)

func NewAuthMiddleware(tokenValidator usecase.TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		tokenValidator: tokenValidator,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			httperr.AbortWithKind(c, http.StatusUnauthorized, commands.ErrAuthRequired, "Access token required", "auth_required")
			return
		}

		identity, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			httperr.AbortWithKind(c, http.StatusUnauthorized, err, "Invalid or expired token", "invalid_token")
			return
		}

		setIdentity(c, identity)
		c.Set(ctxTokenKey, token)
		c.Next()
	}
}

// OptionalAuth authenticates the request if a token is present, but does not abort on failure.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		identity, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			c.Next()
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// extractToken prefers the cookie. Browsers cannot set headers on a WebSocket
// handshake, so the live stream also accepts ?access_token=.
func extractToken(c *gin.Context) string {
	if token := cookie.GetAccessToken(c); token != "" {
		return token
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if c.IsWebsocket() {
		return c.Query("access_token")
	}
	return ""
}

func setIdentity(c *gin.Context, identity user.Identity) {
	c.Set(ctxIdentityKey, identity)
	c.Set("jwt_claims", map[string]any{
		"email": identity.Email(),
	})
}

// GetIdentity returns the authenticated identity, or the anonymous one.
func GetIdentity(c *gin.Context) (user.Identity, bool) {
	v, exists := c.Get(ctxIdentityKey)
	if !exists {
		return user.Identity{}, false
	}

	identity, ok := v.(user.Identity)
	return identity, ok && !identity.IsAnonymous()
}

// GetAccessToken returns the token RequireAuth accepted for this request.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(ctxTokenKey)
}
