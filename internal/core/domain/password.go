package domain

// PasswordContext carries the user attributes a strength estimator treats as
// guessable inputs (a password equal to the account's own email scores zero).
type PasswordContext struct {
	Username string
	Email    string
	Phone    string
}

// Inputs flattens the non-empty context fields for estimator consumption.
func (c PasswordContext) Inputs() []string {
	inputs := make([]string, 0, 3)
	if c.Username != "" {
		inputs = append(inputs, c.Username)
	}
	if c.Email != "" {
		inputs = append(inputs, c.Email)
	}
	if c.Phone != "" {
		inputs = append(inputs, c.Phone)
	}
	return inputs
}
