package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// SessionHandler exposes endpoints for a user to inspect and revoke their own
// sessions.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session management routes to the provided router group.
// Callers are expected to have applied RequireAuth to the group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("", h.ListSessions)
	r.GET("/:session_id", h.GetSession)
	r.DELETE("/:session_id", h.RevokeSession)
	r.DELETE("", h.RevokeAllSessions)
}

// requireUserID pulls the authenticated user id from the request context and
// writes a 401 when it is absent.
func requireUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return "", false
	}
	return userID, true
}

// sessionIDParam extracts the session_id path parameter, writing a 400 when
// it is blank.
func sessionIDParam(c *gin.Context) (string, bool) {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return "", false
	}
	return sessionID, true
}

// currentSessionID resolves the session behind the presented access token.
func currentSessionID(c *gin.Context) string {
	if claims := getAccessTokenClaims(c); claims != nil {
		return strings.TrimSpace(claims.SessionID)
	}
	return ""
}

var sessionErrorCases = []ErrorCase{
	{Err: usecase.ErrSessionForbidden, Status: http.StatusForbidden, Message: "session not owned by user"},
	{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
}

// ListSessions godoc
// @Summary List active sessions
// @Description Retrieves the caller's active sessions. The session behind the presented token is flagged as current.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} SessionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	current := currentSessionID(c)
	response := make([]SessionPayload, 0, len(sessions))
	for _, session := range sessions {
		payload := newSessionPayload(session)
		payload.IsCurrent = current != "" && session.ID == current
		response = append(response, payload)
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: response, Total: len(response)})
}

// GetSession godoc
// @Summary Inspect a session
// @Description Retrieves one of the caller's sessions by id.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionPayload
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to load session")
		return
	}

	payload := newSessionPayload(*session)
	payload.IsCurrent = session.ID == currentSessionID(c)
	c.JSON(http.StatusOK, payload)
}

// RevokeSession godoc
// @Summary Revoke a specific session
// @Description Revokes one of the caller's sessions along with its refresh token.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param session_id path string true "Session identifier"
// @Param reason query string false "Optional revocation reason"
// @Success 204 "Session revoked"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions/{session_id} [delete]
func (h *SessionHandler) RevokeSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))
	err := h.sessions.RevokeSession(c.Request.Context(), userID, sessionID, reason, userID)
	switch {
	case err == nil, errors.Is(err, usecase.ErrSessionAlreadyRevoked):
		// Revoking twice lands in the same state, so report success.
		c.Status(http.StatusNoContent)
	default:
		RespondWithMappedError(c, err, sessionErrorCases, http.StatusInternalServerError, "failed to revoke session")
	}
}

// RevokeAllSessions godoc
// @Summary Revoke all sessions
// @Description Revokes every active session of the caller, including the current one.
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param all query bool true "Must be true to confirm bulk revocation"
// @Param reason query string false "Optional revocation reason"
// @Success 200 {object} SessionBulkRevokeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/sessions [delete]
func (h *SessionHandler) RevokeAllSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	confirm, err := strconv.ParseBool(c.DefaultQuery("all", "false"))
	if err != nil || !confirm {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "query parameter all=true required"))
		return
	}

	reason := strings.TrimSpace(c.Query("reason"))
	count, tokens, revokeErr := h.sessions.RevokeAllForUser(c.Request.Context(), userID, reason, userID)
	if revokeErr != nil {
		RespondWithMappedError(c, revokeErr, nil, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	c.JSON(http.StatusOK, SessionBulkRevokeResponse{
		RevokedCount:  count,
		TokensRevoked: tokens,
	})
}
