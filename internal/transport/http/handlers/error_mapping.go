package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase binds a usecase sentinel to the status and user-visible message
// it maps to at the transport boundary.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError writes the JSON error body for err. The first
// matching case wins; anything unmatched gets the fallback, so internal error
// text never reaches a client.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	status, message := resolveErrorCase(err, cases, fallbackStatus, fallbackMessage)
	c.JSON(status, NewErrorResponse(c, message))
}

func resolveErrorCase(err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) (int, string) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			return cs.Status, cs.Message
		}
	}
	return fallbackStatus, fallbackMessage
}
