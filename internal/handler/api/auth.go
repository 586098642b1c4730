package api

import (
	"errors"
	"net/http"

	reqdto "parkwise/internal/handler/dto/request"
	resdto "parkwise/internal/handler/dto/response"
	"parkwise/internal/handler/httperr"
	"parkwise/internal/handler/middleware"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/cookie"
	"parkwise/internal/usecase/commands"
	"parkwise/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	cmds commands.AuthCommands
	q    queries.UserQueries
	cfg  config.CookieConfig
}

func NewAuthHandler(cmds commands.AuthCommands, q queries.UserQueries, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		cmds: cmds,
		q:    q,
		cfg:  cfg.Cookie,
	}
}

// @Summary Register
// @Description Create a password account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body reqdto.RegisterRequest true "Register request"
// @Success 201 {object} resdto.LoginResponse
// @Failure 400 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req reqdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request format", nil)
		return
	}

	result, err := h.cmds.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrEmailTaken):
			httperr.AbortWithKind(c, http.StatusConflict, err, "Email is already registered", "email_taken")
		case errors.Is(err, commands.ErrAuthenticationFailed), errors.Is(err, commands.ErrInvalidCredentials):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request data", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	h.signIn(c, http.StatusCreated, result)
}

// @Summary User login
// @Description Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body reqdto.LoginRequest true "Login request"
// @Success 200 {object} resdto.LoginResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req reqdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request format", nil)
		return
	}

	result, err := h.cmds.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrInvalidCredentials), errors.Is(err, commands.ErrAuthenticationFailed):
			httperr.AbortWithKind(c, http.StatusUnauthorized, err, "Invalid email or password", "invalid_credentials")
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	h.signIn(c, http.StatusOK, result)
}

// @Summary Federated login
// @Description Login with an ID token from the external identity provider
// @Tags auth
// @Accept json
// @Produce json
// @Param request body reqdto.FederatedLoginRequest true "Federated login request"
// @Success 200 {object} resdto.LoginResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Router /auth/federated [post]
func (h *AuthHandler) LoginFederated(c *gin.Context) {
	var req reqdto.FederatedLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request format", nil)
		return
	}

	result, err := h.cmds.LoginFederated(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrInvalidIDToken):
			httperr.AbortWithKind(c, http.StatusUnauthorized, err, "Invalid identity token", "invalid_id_token")
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	h.signIn(c, http.StatusOK, result)
}

// @Summary User logout
// @Description Ends the caller's session and clears the token cookie
// @Tags auth
// @Security BearerAuth
// @Success 204 "No Content"
// @Failure 401 {object} httperr.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}

	if err := h.cmds.Logout(c.Request.Context(), identity, middleware.GetAccessToken(c)); err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}

	cookie.ClearTokenCookie(c, h.cfg)
	c.Status(http.StatusNoContent)
}

// @Summary Get current user
// @Description Get current authenticated user information
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} resdto.UserResponse
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httperr.Unauthorized(c, commands.ErrAuthRequired)
		return
	}

	view, err := h.q.GetCurrentUser(c.Request.Context(), identity)
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrUserNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "User not found", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		}
		return
	}

	res, err := resdto.FromAccountView(view)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal server error", nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) signIn(c *gin.Context, status int, result *commands.AuthResult) {
	cookie.SetTokenCookie(c, h.cfg, result.AccessToken, result.ExpiresIn)
	c.JSON(status, resdto.FromAuthResult(result))
}
