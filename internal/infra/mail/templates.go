package mail

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/arklim/social-platform-accounts/internal/core/port"
)

var (
	passwordResetTemplate = template.Must(template.New("password_reset").Parse(
		`Hello {{.To}},

A request was made to reset the password for your account. Click the link below to choose a new password:

{{.Link}}

If the link does not work, enter this token in the application:

{{.Token}}

The link expires in {{.ExpiresIn}}. If you did not request a password reset you can safely ignore this email.
`))

	passwordChangedTemplate = template.Must(template.New("password_changed").Parse(
		`Hello {{.To}},

Your password has been reset.

If you did not reset your password, contact support immediately and secure your account.
`))

	usernameRecoveryTemplate = template.Must(template.New("username_recovery").Parse(
		`Hello,

You (or someone else) requested a reminder of the username for this email address.

Your username is: {{.Username}}

If you did not request this, you can safely ignore this email.
`))
)

func renderPasswordReset(msg port.PasswordResetEmail) (string, error) {
	return render(passwordResetTemplate, msg)
}

func renderPasswordChanged(msg port.PasswordChangedEmail) (string, error) {
	return render(passwordChangedTemplate, msg)
}

func renderUsernameRecovery(msg port.UsernameRecoveryEmail) (string, error) {
	return render(usernameRecoveryTemplate, msg)
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}
