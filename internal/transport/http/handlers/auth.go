package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// AuthHandler exposes login, logout, token refresh, and the profile endpoint.
type AuthHandler struct {
	cfg   *config.AppConfig
	auth  *usecase.AuthService
	pages *PagesHandler
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(cfg *config.AppConfig, auth *usecase.AuthService, pages *PagesHandler) *AuthHandler {
	return &AuthHandler{cfg: cfg, auth: auth, pages: pages}
}

// Login godoc
// @Summary Authenticate with credentials
// @Description Validates the identifier and password, opens a session, and returns access and refresh tokens. Form posts receive a redirect and a session cookie instead.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body AuthLoginRequest true "Login request"
// @Success 200 {object} AuthLoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails "Rate limit exceeded"
// @Failure 500 {object} ErrorResponse
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req AuthLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), usecase.LoginInput{
		Identifier: strings.TrimSpace(req.Identifier),
		Password:   req.Password,
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	if wantsFormResponse(c) {
		setSessionCookie(c, h.cfg, &result.Tokens)
		c.Redirect(http.StatusFound, safeNextPath(req.Next, h.cfg.HTTP.PostLoginView))
		return
	}

	c.JSON(http.StatusOK, AuthLoginResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresInSeconds(result.Tokens.AccessTokenExpiresAt),
		SessionID:    result.Tokens.SessionID,
		User:         newUserSummary(result.User),
	})
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr, "Too many login attempts.")
		return
	}

	status := http.StatusInternalServerError
	message := "authentication failed"
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, usecase.ErrAccountDisabled):
		status, message = http.StatusForbidden, msgAccountDisabled
	case errors.Is(err, usecase.ErrAccountPending):
		status, message = http.StatusForbidden, "Account is pending verification"
	}

	if wantsFormResponse(c) {
		c.Redirect(http.StatusFound, h.cfg.HTTP.LoginPath+"?"+url.Values{"error": {message}}.Encode())
		return
	}
	c.JSON(status, NewErrorResponse(c, message))
}

// Logout godoc
// @Summary Log out the current session
// @Description Revokes the caller's session and refresh token, and denylists the presented access token until it would have expired.
// @Tags Authentication
// @Security Bearer
// @Produce json
// @Success 204 {string} string ""
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	input := usecase.LogoutInput{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		JTI:       claims.ID,
		Reason:    "logout",
	}
	if claims.ExpiresAt != nil {
		input.TokenExpires = claims.ExpiresAt.Time
	}

	if input.SessionID != "" {
		if err := h.auth.Logout(c.Request.Context(), input); err != nil && !errors.Is(err, usecase.ErrSessionNotFound) {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to log out"))
			return
		}
	}

	clearSessionCookie(c, h.cfg)
	if middleware.WantsHTML(c) {
		c.Redirect(http.StatusFound, h.cfg.HTTP.LoginPath)
		return
	}
	c.Status(http.StatusNoContent)
}

// Refresh godoc
// @Summary Refresh an access token
// @Description Rotates the refresh token and issues a new access token for the same session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body TokenRefreshRequest true "Refresh request"
// @Param include_user query bool false "Include the account summary in the response"
// @Success 200 {object} TokenRefreshResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tokens/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	result, err := h.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken, usecase.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRefreshToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid refresh token"))
		case errors.Is(err, usecase.ErrExpiredRefreshToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token expired"))
		case errors.Is(err, usecase.ErrSessionRevoked), errors.Is(err, usecase.ErrSessionExpired):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session is no longer valid"))
		case errors.Is(err, usecase.ErrAccountDisabled):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, msgAccountDisabled))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to refresh token"))
		}
		return
	}

	resp := TokenRefreshResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresInSeconds(result.Tokens.AccessTokenExpiresAt),
	}
	if includeUser, _ := strconv.ParseBool(c.DefaultQuery("include_user", "false")); includeUser {
		summary := newUserSummary(result.User)
		resp.User = &summary
	}
	c.JSON(http.StatusOK, resp)
}

// Profile godoc
// @Summary Current account
// @Description Returns the authenticated account. Browser clients get an HTML page instead of JSON.
// @Tags Authentication
// @Security Bearer
// @Produce json
// @Success 200 {object} UserSummary
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		cases := []ErrorCase{{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "account not found"}}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to load account")
		return
	}

	if middleware.WantsHTML(c) && h.pages != nil {
		h.pages.Profile(c, *user)
		return
	}
	c.JSON(http.StatusOK, newUserSummary(*user))
}

func getAccessTokenClaims(c *gin.Context) *security.AccessTokenClaims {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// setSessionCookie stores the access token for browser clients. HttpOnly
// keeps it out of scripts; SPA deployments use the JSON token flow instead.
func setSessionCookie(c *gin.Context, cfg *config.AppConfig, tokens *usecase.AuthTokens) {
	maxAge := int(time.Until(tokens.AccessTokenExpiresAt) / time.Second)
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Security.SessionCookieName, tokens.AccessToken, maxAge, "/", "", cfg.App.IsProduction(), true)
}

func clearSessionCookie(c *gin.Context, cfg *config.AppConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Security.SessionCookieName, "", -1, "/", "", cfg.App.IsProduction(), true)
}

// safeNextPath keeps post-login redirects on this origin. Anything that is
// not a local absolute path falls back.
func safeNextPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return fallback
	}
	return next
}
