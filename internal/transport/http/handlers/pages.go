package handlers

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/transport/http/middleware"
)

// PagesHandler renders the built-in browser pages. Deployments with a SPA
// front end never hit these; they exist so the recovery flows work without
// any client code.
type PagesHandler struct {
	cfg *config.AppConfig
}

// NewPagesHandler constructs PagesHandler.
func NewPagesHandler(cfg *config.AppConfig) *PagesHandler {
	return &PagesHandler{cfg: cfg}
}

type pageData struct {
	Title                string
	Error                string
	Message              string
	Action               string
	CSRFToken            string
	Next                 string
	LoginPath            string
	ResetPath            string
	UsernameRecoveryPath string
	RecoveryEnabled      bool
	Username             string
}

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{end}}

{{define "foot"}}</body>
</html>
{{end}}

{{define "csrf"}}{{if .CSRFToken}}<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">{{end}}{{end}}

{{define "login"}}{{template "head" .}}
<form method="POST" action="{{.Action}}">
{{template "csrf" .}}
{{if .Next}}<input type="hidden" name="next" value="{{.Next}}">{{end}}
<label>Email or username <input type="text" name="identifier" autocomplete="username"></label>
<label>Password <input type="password" name="password" autocomplete="current-password"></label>
<button type="submit">Log in</button>
</form>
<p><a href="{{.ResetPath}}">Forgot password?</a></p>
{{if .RecoveryEnabled}}<p><a href="{{.UsernameRecoveryPath}}">Forgot username?</a></p>{{end}}
{{template "foot" .}}{{end}}

{{define "reset_request"}}{{template "head" .}}
<form method="POST" action="{{.Action}}">
{{template "csrf" .}}
<label>Email <input type="email" name="email" autocomplete="email"></label>
<button type="submit">Send reset instructions</button>
</form>
<p><a href="{{.LoginPath}}">Back to login</a></p>
{{template "foot" .}}{{end}}

{{define "reset_form"}}{{template "head" .}}
<form method="POST" action="{{.Action}}">
{{template "csrf" .}}
<label>New password <input type="password" name="password" autocomplete="new-password"></label>
<label>Retype password <input type="password" name="password_confirm" autocomplete="new-password"></label>
<button type="submit">Set password</button>
</form>
{{template "foot" .}}{{end}}

{{define "username_recovery"}}{{template "head" .}}
<form method="POST" action="{{.Action}}">
{{template "csrf" .}}
<label>Email <input type="email" name="email" autocomplete="email"></label>
<button type="submit">Send my username</button>
</form>
<p><a href="{{.LoginPath}}">Back to login</a></p>
{{template "foot" .}}{{end}}

{{define "profile"}}{{template "head" .}}
<p>Signed in as <strong>{{.Username}}</strong>.</p>
<form method="POST" action="/logout">
{{template "csrf" .}}
<button type="submit">Log out</button>
</form>
{{template "foot" .}}{{end}}
`))

// Login renders the login form.
func (h *PagesHandler) Login(c *gin.Context) {
	h.render(c, http.StatusOK, "login", pageData{
		Title:  "Log in",
		Action: h.cfg.HTTP.LoginPath,
		Next:   c.Query("next"),
	})
}

// ResetRequest renders the form requesting password reset instructions.
func (h *PagesHandler) ResetRequest(c *gin.Context) {
	h.render(c, http.StatusOK, "reset_request", pageData{
		Title:  "Reset your password",
		Action: h.cfg.HTTP.ResetPath,
	})
}

// ResetForm renders the set-password form for a validated token. The token
// only ever appears in the form action, never in the page body.
func (h *PagesHandler) ResetForm(c *gin.Context, token string) {
	h.render(c, http.StatusOK, "reset_form", pageData{
		Title:  "Choose a new password",
		Action: h.cfg.HTTP.ResetPath + "/" + url.PathEscape(token),
	})
}

// UsernameRecovery renders the form requesting the username reminder.
func (h *PagesHandler) UsernameRecovery(c *gin.Context) {
	h.render(c, http.StatusOK, "username_recovery", pageData{
		Title:  "Recover your username",
		Action: h.cfg.HTTP.UsernameRecoveryPath,
	})
}

// Profile renders the signed-in landing page for browser clients.
func (h *PagesHandler) Profile(c *gin.Context, user domain.User) {
	h.render(c, http.StatusOK, "profile", pageData{
		Title:    "Your account",
		Username: user.Username,
	})
}

func (h *PagesHandler) render(c *gin.Context, status int, name string, data pageData) {
	if data.Error == "" {
		data.Error = c.Query("error")
	}
	if data.Message == "" {
		data.Message = c.Query("message")
	}
	data.CSRFToken = middleware.GetCSRFToken(c)
	data.LoginPath = h.cfg.HTTP.LoginPath
	data.ResetPath = h.cfg.HTTP.ResetPath
	data.UsernameRecoveryPath = h.cfg.HTTP.UsernameRecoveryPath
	data.RecoveryEnabled = h.cfg.Recovery.UsernameRecoveryEnabled

	setPageHeaders(c)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := pageTemplates.ExecuteTemplate(c.Writer, name, data); err != nil {
		_ = c.Error(err)
	}
}

// setPageHeaders applies the security headers every built-in page carries.
// Recovery pages embed secrets in form actions, so caching is off across the
// board.
func setPageHeaders(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "no-referrer")
}
