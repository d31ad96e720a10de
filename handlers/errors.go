package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/services/invitation"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

var errorMessages = map[error]string{
	invitation.ErrEmailRequired:       "Email is required",
	invitation.ErrInvalidEmail:        "Invalid email address",
	invitation.ErrTokenRequired:       "Token is required",
	invitation.ErrIssuerRequired:      "Unauthorized",
	invitation.ErrDuplicateAccount:    "User with this email already exists",
	invitation.ErrDuplicateInvitation: "Invitation already sent to this email",
	invitation.ErrDeliveryFailed:      "Failed to send invitation email",
	invitation.ErrInvalidOrExpired:    "Invalid or expired invitation link",
	invitation.ErrNotFound:            "Invitation not found",
}

func statusFor(reason string) int {
	switch reason {
	case invitation.ReasonUnauthorized:
		return http.StatusUnauthorized
	case invitation.ReasonNotFound:
		return http.StatusNotFound
	case invitation.ReasonDeliveryFailed, invitation.ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// messageFor returns the client-facing text for err. Unrecognized errors get fallback
// so store details never reach the client.
func messageFor(err error, fallback string) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return fallback
}

func writeError(c echo.Context, err error, fallback string) error {
	reason := invitation.Reason(err)
	return c.JSON(statusFor(reason), ErrorResponse{
		Error:  messageFor(err, fallback),
		Reason: reason,
	})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:  "Unauthorized",
		Reason: invitation.ReasonUnauthorized,
	})
}
