package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/infra/security"
	"github.com/arklim/social-platform-accounts/internal/usecase"
)

// ClaimsKey is the context key for the parsed access token claims.
const ClaimsKey = "claims"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the caller's access token, checks revocation state,
// and stores the claims for handlers. The token comes from the Authorization
// header, falling back to the named session cookie so form logins work
// without scripts. Browser clients asking for HTML are sent to the login page
// instead of receiving a JSON 401.
func RequireAuth(auth *usecase.AuthService, loginPath, sessionCookie string) gin.HandlerFunc {
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && sessionCookie != "" {
			if value, err := c.Cookie(sessionCookie); err == nil {
				token = strings.TrimSpace(value)
			}
		}
		if token == "" {
			rejectUnauthenticated(c, loginPath, "missing access token")
			return
		}

		claims, err := auth.ParseAccessToken(token)
		if err != nil {
			if errors.Is(err, usecase.ErrExpiredAccessToken) {
				rejectUnauthenticated(c, loginPath, "access token expired")
			} else {
				rejectUnauthenticated(c, loginPath, "invalid access token")
			}
			return
		}

		if err := auth.ValidateAccess(c.Request.Context(), claims); err != nil {
			switch {
			case errors.Is(err, usecase.ErrSessionRevoked), errors.Is(err, usecase.ErrSessionExpired), errors.Is(err, usecase.ErrInvalidAccessToken):
				rejectUnauthenticated(c, loginPath, "session is no longer valid")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UserID = claims.UserID
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// rejectUnauthenticated answers in the shape the client can use: browsers are
// redirected to the login page with the original target in ?next=, everyone
// else receives JSON.
func rejectUnauthenticated(c *gin.Context, loginPath, message string) {
	if WantsHTML(c) {
		target := loginPath
		if next := c.Request.URL.RequestURI(); next != "" && next != loginPath {
			target = loginPath + "?next=" + url.QueryEscape(next)
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, message))
}

// WantsHTML reports whether the client prefers an HTML answer over JSON. JSON
// wins whenever it is mentioned, matching how single-page apps call these
// endpoints with Accept: application/json.
func WantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "text/html")
}

// GetClaims retrieves the parsed access token claims stored by RequireAuth.
func GetClaims(c *gin.Context) (*security.AccessTokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.AccessTokenClaims)
	return claims, ok
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}

	if id, ok := userID.(string); ok {
		return id, true
	}

	return "", false
}
