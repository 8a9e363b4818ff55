package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/infra/security"
)

const (
	defaultCSRFCookieName = "csrf_token"
	defaultCSRFHeaderName = "X-CSRF-Token"
	defaultCSRFFormField  = "csrf_token"
	defaultCSRFCookieAge  = 12 * time.Hour
	csrfTokenByteLength   = 32

	csrfMissingMessage = "The CSRF token is missing."
	csrfInvalidMessage = "The CSRF token is invalid."

	// csrfTokenKey is the context key page handlers read to embed the token
	// in rendered forms.
	csrfTokenKey = "csrf_token"
)

// CSRFOptions configures the double-submit cookie protection.
type CSRFOptions struct {
	CookieName   string
	HeaderName   string
	FormField    string
	CookieMaxAge time.Duration
	Secure       bool
}

func (o CSRFOptions) withDefaults() CSRFOptions {
	if o.CookieName == "" {
		o.CookieName = defaultCSRFCookieName
	}
	if o.HeaderName == "" {
		o.HeaderName = defaultCSRFHeaderName
	}
	if o.FormField == "" {
		o.FormField = defaultCSRFFormField
	}
	if o.CookieMaxAge <= 0 {
		o.CookieMaxAge = defaultCSRFCookieAge
	}
	return o
}

// CSRF implements double-submit cookie protection. Safe methods receive the
// cookie; state-changing methods must echo its value back in a header or form
// field. The cookie is deliberately readable by scripts so single-page apps
// can copy it into the header.
func CSRF(opts CSRFOptions) gin.HandlerFunc {
	opts = opts.withDefaults()

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			token, err := c.Cookie(opts.CookieName)
			if err != nil || token == "" {
				token, err = security.GenerateSecureToken(csrfTokenByteLength)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError,
						newErrorResponse(c, "failed to issue CSRF token"))
					return
				}
				c.SetCookie(opts.CookieName, token, int(opts.CookieMaxAge.Seconds()), "/", "", opts.Secure, false)
			}
			c.Set(csrfTokenKey, token)
			c.Next()
			return
		}

		cookie, err := c.Cookie(opts.CookieName)
		if err != nil || cookie == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, newErrorResponse(c, csrfMissingMessage))
			return
		}

		presented := c.GetHeader(opts.HeaderName)
		if presented == "" {
			presented = c.PostForm(opts.FormField)
		}
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, newErrorResponse(c, csrfMissingMessage))
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookie), []byte(presented)) != 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, newErrorResponse(c, csrfInvalidMessage))
			return
		}

		c.Set(csrfTokenKey, cookie)
		c.Next()
	}
}

// GetCSRFToken returns the CSRF token bound to this request, if any.
func GetCSRFToken(c *gin.Context) string {
	if value, exists := c.Get(csrfTokenKey); exists {
		if token, ok := value.(string); ok {
			return token
		}
	}
	return ""
}
