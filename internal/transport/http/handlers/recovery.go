package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// User-visible recovery messages. The generic ones are shared verbatim
// between the found and not-found branches so responses cannot be used to
// probe for accounts.
const (
	msgResetRequestedGeneric = "If the account exists, instructions have been sent."
	msgResetRequested        = "Instructions to reset your password have been sent to %s."
	msgUserDoesNotExist      = "Specified user does not exist"
	msgAccountDisabled       = "Account is disabled"
	msgInvalidEmail          = "Invalid email address"
	msgInvalidResetToken     = "Invalid reset password token"
	msgPasswordNotProvided   = "Password not provided"
	msgPasswordMismatch      = "Passwords do not match"
	msgPasswordReused        = "Your new password must be different than your previous password"
	msgPasswordWasReset      = "You successfully reset your password."
	msgPasswordResetLoggedIn = "You successfully reset your password and you have been logged in automatically."
	msgUsernameSentGeneric   = "If the account exists, the username has been sent to its email address."
)

// RecoveryHandler exposes password-reset and username-recovery endpoints in
// JSON and HTML form variants. Browsers get redirects with the outcome
// flashed as a query message; API clients get structured bodies.
type RecoveryHandler struct {
	cfg      *config.AppConfig
	reset    *usecase.PasswordResetService
	recovery *usecase.UsernameRecoveryService
	pages    *PagesHandler
	isDev    bool
}

// NewRecoveryHandler constructs RecoveryHandler. The username-recovery
// service may be nil when the feature flag is off; routes are not registered
// in that case.
func NewRecoveryHandler(cfg *config.AppConfig, reset *usecase.PasswordResetService, recovery *usecase.UsernameRecoveryService, pages *PagesHandler) *RecoveryHandler {
	return &RecoveryHandler{
		cfg:      cfg,
		reset:    reset,
		recovery: recovery,
		pages:    pages,
		isDev:    cfg != nil && cfg.App.IsDevelopment(),
	}
}

// Forgot godoc
// @Summary Request password reset instructions
// @Description Sends a single-use reset link to the account's email address. With generic responses enabled the answer is identical whether or not the account exists.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body PasswordResetRequestBody true "Reset request payload"
// @Success 200 {object} PasswordResetRequestedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails "Rate limit exceeded"
// @Failure 500 {object} ErrorResponse
// @Router /reset [post]
func (h *RecoveryHandler) Forgot(c *gin.Context) {
	started := time.Now()

	var req PasswordResetRequestBody
	if err := c.ShouldBind(&req); err != nil {
		h.settle(started)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	result, err := h.reset.RequestPasswordReset(c.Request.Context(), usecase.PasswordResetRequest{
		Email:     req.Email,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	h.settle(started)
	if err != nil {
		h.respondForgotError(c, err)
		return
	}

	if wantsFormResponse(c) {
		h.flashRedirect(c, h.cfg.HTTP.ResetPath, "message", h.forgotAckMessage(result.MaskedDestination))
		return
	}

	resp := PasswordResetRequestedResponse{
		Message:   h.forgotAckMessage(result.MaskedDestination),
		RequestID: result.RequestID,
	}
	expires := result.ExpiresAt.UTC().Format(time.RFC3339)
	resp.ExpiresAt = &expires
	if h.isDev && result.Token != "" {
		token := result.Token
		resp.DevToken = &token
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecoveryHandler) respondForgotError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr, "Too many password reset requests.")
		return
	}

	if errors.Is(err, usecase.ErrInvalidEmail) {
		h.respondFieldError(c, h.cfg.HTTP.ResetPath, "email", msgInvalidEmail)
		return
	}

	if h.cfg.Recovery.GenericResponses {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound),
			errors.Is(err, usecase.ErrAccountDisabled),
			errors.Is(err, usecase.ErrDeliveryFailed):
			h.respondFabricatedAck(c)
			return
		}
	}

	switch {
	case errors.Is(err, usecase.ErrUserNotFound):
		h.respondRecoveryError(c, http.StatusBadRequest, h.cfg.HTTP.ResetPath, msgUserDoesNotExist)
	case errors.Is(err, usecase.ErrAccountDisabled):
		h.respondRecoveryError(c, http.StatusBadRequest, h.cfg.HTTP.ResetPath, msgAccountDisabled)
	case errors.Is(err, usecase.ErrDeliveryFailed):
		h.respondRecoveryError(c, http.StatusInternalServerError, h.cfg.HTTP.ResetPath, "Failed to send reset instructions")
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
	}
}

// respondFabricatedAck answers exactly like a successful request so unknown
// and disabled accounts are indistinguishable from live ones. The request id
// and expiry are made up for the occasion.
func (h *RecoveryHandler) respondFabricatedAck(c *gin.Context) {
	if wantsFormResponse(c) {
		h.flashRedirect(c, h.cfg.HTTP.ResetPath, "message", msgResetRequestedGeneric)
		return
	}

	expires := time.Now().UTC().Add(h.cfg.Recovery.ResetTTL).Format(time.RFC3339)
	c.JSON(http.StatusOK, PasswordResetRequestedResponse{
		Message:   msgResetRequestedGeneric,
		RequestID: uuid.NewString(),
		ExpiresAt: &expires,
	})
}

func (h *RecoveryHandler) forgotAckMessage(maskedDestination string) string {
	if h.cfg.Recovery.GenericResponses {
		return msgResetRequestedGeneric
	}
	return fmt.Sprintf(msgResetRequested, maskedDestination)
}

// ResetLanding godoc
// @Summary Open a password reset link
// @Description Validates the emailed token and either renders the set-password form or redirects the SPA front end. Expired tokens trigger an automatic resend.
// @Tags Recovery
// @Produce html
// @Param token path string true "Raw reset token"
// @Success 200 {string} string "Set-password form"
// @Success 302 {string} string "SPA or error redirect"
// @Router /reset/{token} [get]
func (h *RecoveryHandler) ResetLanding(c *gin.Context) {
	token := c.Param("token")

	_, err := h.reset.InspectResetToken(c.Request.Context(), token, usecase.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		// Redirect targets carry the failure as a query parameter. The message
		// never includes an address or user id; only response bodies may.
		message := resetLandingErrorMessage(err)
		if h.cfg.SPA.Enabled {
			c.Redirect(http.StatusFound, h.spaRedirect(h.cfg.SPA.ResetErrorView, url.Values{"error": {message}}))
			return
		}
		h.flashRedirect(c, h.cfg.HTTP.ResetPath, "error", message)
		return
	}

	if h.cfg.SPA.Enabled {
		c.Redirect(http.StatusFound, h.spaRedirect(h.cfg.SPA.ResetView, url.Values{"token": {token}}))
		return
	}
	h.pages.ResetForm(c, token)
}

func resetLandingErrorMessage(err error) string {
	var expiredErr *usecase.TokenExpiredError
	switch {
	case errors.As(err, &expiredErr):
		return fmt.Sprintf("You did not reset your password within %s. New instructions have been sent.", expiredErr.Within)
	case errors.Is(err, usecase.ErrAccountDisabled):
		return msgAccountDisabled
	case errors.Is(err, usecase.ErrResetTokenInvalid):
		return msgInvalidResetToken
	default:
		return msgInvalidResetToken
	}
}

// Reset godoc
// @Summary Redeem a password reset token
// @Description Sets a new password, revokes every session and refresh token the account held, and optionally signs the caller in.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param token path string true "Raw reset token"
// @Param include_auth_token query bool false "Issue a token pair for the new session"
// @Param request body PasswordResetConfirmBody true "New password payload"
// @Success 200 {object} PasswordResetConfirmedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /reset/{token} [post]
func (h *RecoveryHandler) Reset(c *gin.Context) {
	token := c.Param("token")

	var body PasswordResetConfirmBody
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	outcome, err := h.reset.ConfirmPasswordReset(c.Request.Context(), usecase.PasswordResetConfirm{
		Token:            token,
		NewPassword:      body.Password,
		PasswordConfirm:  body.PasswordConfirm,
		IncludeAuthToken: queryFlag(c, "include_auth_token"),
		IP:               c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
	})
	if err != nil {
		h.respondResetError(c, token, err)
		return
	}

	if wantsFormResponse(c) {
		target := h.cfg.HTTP.PostResetView
		if outcome.Auth != nil {
			setSessionCookie(c, h.cfg, outcome.Auth)
			target = h.cfg.HTTP.PostLoginView
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	resp := PasswordResetConfirmedResponse{
		Message:         msgPasswordWasReset,
		SessionsRevoked: outcome.SessionsRevoked,
		TokensRevoked:   outcome.TokensRevoked,
	}
	if outcome.Auth != nil {
		resp.Message = msgPasswordResetLoggedIn
		summary := newUserSummary(outcome.User)
		resp.User = &summary
		auth := newAuthTokensPayload(*outcome.Auth)
		resp.Auth = &auth
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecoveryHandler) respondResetError(c *gin.Context, token string, err error) {
	formPath := h.cfg.HTTP.ResetPath + "/" + url.PathEscape(token)

	var expiredErr *usecase.TokenExpiredError
	if errors.As(err, &expiredErr) {
		if wantsFormResponse(c) {
			h.flashRedirect(c, h.cfg.HTTP.ResetPath, "error", resetLandingErrorMessage(err))
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, expiredErr.Error()))
		return
	}

	var validationErr *security.PasswordValidationError
	if errors.As(err, &validationErr) {
		h.respondFieldError(c, formPath, "password", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, usecase.ErrPasswordMissing):
		h.respondFieldError(c, formPath, "password", msgPasswordNotProvided)
	case errors.Is(err, usecase.ErrPasswordMismatch):
		h.respondFieldError(c, formPath, "password_confirm", msgPasswordMismatch)
	case errors.Is(err, usecase.ErrPasswordReused):
		h.respondFieldError(c, formPath, "password", msgPasswordReused)
	case errors.Is(err, usecase.ErrResetTokenInvalid):
		h.respondRecoveryError(c, http.StatusBadRequest, h.cfg.HTTP.ResetPath, msgInvalidResetToken)
	case errors.Is(err, usecase.ErrAccountDisabled):
		h.respondRecoveryError(c, http.StatusBadRequest, h.cfg.HTTP.ResetPath, msgAccountDisabled)
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to reset password"))
	}
}

// RecoverUsername godoc
// @Summary Request a username reminder
// @Description Sends the account's username to its email address. The response is always the same acknowledgement, whatever the lookup found.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body UsernameRecoveryRequestBody true "Recovery request payload"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails "Rate limit exceeded"
// @Failure 500 {object} ErrorResponse
// @Router /recover-username [post]
func (h *RecoveryHandler) RecoverUsername(c *gin.Context) {
	started := time.Now()

	if h.recovery == nil {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "not found"))
		return
	}

	var req UsernameRecoveryRequestBody
	if err := c.ShouldBind(&req); err != nil {
		h.settle(started)
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	_, err := h.recovery.RequestUsernameRecovery(c.Request.Context(), usecase.UsernameRecoveryRequest{
		Email: req.Email,
		IP:    c.ClientIP(),
	})
	h.settle(started)
	if err != nil {
		var rateErr *usecase.RateLimitExceededError
		switch {
		case errors.As(err, &rateErr):
			respondRateLimitExceeded(c, rateErr, "Too many username recovery requests.")
		case errors.Is(err, usecase.ErrInvalidEmail):
			h.respondFieldError(c, h.cfg.HTTP.UsernameRecoveryPath, "email", msgInvalidEmail)
		case errors.Is(err, usecase.ErrUsernameRecoveryDisabled):
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "not found"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process recovery request"))
		}
		return
	}

	if wantsFormResponse(c) {
		h.flashRedirect(c, h.cfg.HTTP.UsernameRecoveryPath, "message", msgUsernameSentGeneric)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: msgUsernameSentGeneric})
}

// DevInitiateReset godoc
// @Summary Issue a reset token without sending mail
// @Description Development-only helper returning the raw token for integration tests.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body PasswordResetRequestBody true "Reset request payload"
// @Success 200 {object} PasswordResetRequestedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/recovery/reset/initiate [post]
func (h *RecoveryHandler) DevInitiateReset(c *gin.Context) {
	if !h.isDev {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "not found"))
		return
	}

	var req PasswordResetRequestBody
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	result, err := h.reset.InitiateReset(c.Request.Context(), req.Email)
	if err != nil {
		cases := []ErrorCase{
			{Err: usecase.ErrInvalidEmail, Status: http.StatusBadRequest, Message: msgInvalidEmail},
			{Err: usecase.ErrUserNotFound, Status: http.StatusBadRequest, Message: msgUserDoesNotExist},
			{Err: usecase.ErrAccountDisabled, Status: http.StatusBadRequest, Message: msgAccountDisabled},
		}
		RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "failed to initiate reset")
		return
	}

	token := result.Token
	expires := result.ExpiresAt.UTC().Format(time.RFC3339)
	c.JSON(http.StatusOK, PasswordResetRequestedResponse{
		Message:   fmt.Sprintf(msgResetRequested, result.MaskedDestination),
		RequestID: result.RequestID,
		ExpiresAt: &expires,
		DevToken:  &token,
	})
}

// settle pads handling time to min_request_duration so response latency does
// not reveal whether an account exists.
func (h *RecoveryHandler) settle(started time.Time) {
	minDuration := h.cfg.Recovery.MinRequestDuration
	if minDuration <= 0 {
		return
	}
	if elapsed := time.Since(started); elapsed < minDuration {
		time.Sleep(minDuration - elapsed)
	}
}

// respondFieldError reports a repairable input problem. API clients get the
// offending field in field_errors; form clients get the message flashed on
// the page they came from.
func (h *RecoveryHandler) respondFieldError(c *gin.Context, formPath, field, message string) {
	if wantsFormResponse(c) {
		h.flashRedirect(c, formPath, "error", message)
		return
	}
	resp := NewErrorResponse(c, message)
	resp.FieldErrors = map[string][]string{field: {message}}
	c.JSON(http.StatusBadRequest, resp)
}

func (h *RecoveryHandler) respondRecoveryError(c *gin.Context, status int, formPath, message string) {
	if wantsFormResponse(c) {
		h.flashRedirect(c, formPath, "error", message)
		return
	}
	c.JSON(status, NewErrorResponse(c, message))
}

func (h *RecoveryHandler) flashRedirect(c *gin.Context, path, key, message string) {
	c.Redirect(http.StatusFound, path+"?"+url.Values{key: {message}}.Encode())
}

func (h *RecoveryHandler) spaRedirect(view string, params url.Values) string {
	target := url.URL{
		Scheme:   h.cfg.SPA.RedirectScheme,
		Host:     h.cfg.SPA.RedirectHost,
		Path:     view,
		RawQuery: params.Encode(),
	}
	return target.String()
}

// wantsFormResponse reports whether the caller is a browser form post rather
// than an API client. JSON requests always get JSON back.
func wantsFormResponse(c *gin.Context) bool {
	if c.ContentType() == "application/json" {
		return false
	}
	return middleware.WantsHTML(c)
}

func queryFlag(c *gin.Context, name string) bool {
	raw, exists := c.GetQuery(name)
	if !exists {
		return false
	}
	if raw == "" {
		return true
	}
	parsed, err := strconv.ParseBool(raw)
	return err == nil && parsed
}

func respondRateLimitExceeded(c *gin.Context, rateErr *usecase.RateLimitExceededError, detail string) {
	retryAfter := int(rateErr.RetryAfter / time.Second)
	if rateErr.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	if retryAfter > 0 {
		detail = fmt.Sprintf("%s Try again in %d seconds.", detail, retryAfter)
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, middleware.ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
	})
}

const (
	rateLimitProblemType  = "https://accounts.social-platform.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)
