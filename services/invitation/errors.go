package invitation

import "errors"

var (
	ErrEmailRequired       = errors.New("email is required")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrTokenRequired       = errors.New("token is required")
	ErrIssuerRequired      = errors.New("an authenticated issuer is required")
	ErrDuplicateAccount    = errors.New("a user with this email already exists")
	ErrDuplicateInvitation = errors.New("an active invitation already exists for this email")
	ErrDeliveryFailed      = errors.New("failed to send invitation email")
	ErrInvalidOrExpired    = errors.New("invalid or expired invitation")
	ErrNotFound            = errors.New("invitation not found")
)

const (
	ReasonValidation          = "validation_error"
	ReasonDuplicateAccount    = "duplicate_account"
	ReasonDuplicateInvitation = "duplicate_invitation"
	ReasonDeliveryFailed      = "delivery_failed"
	ReasonInvalidOrExpired    = "invalid_or_expired"
	ReasonNotFound            = "not_found"
	ReasonUnauthorized        = "unauthorized"
	ReasonInternal            = "internal_error"
)

// Reason maps an error returned by the service to its machine-readable reason.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrTokenRequired):
		return ReasonValidation
	case errors.Is(err, ErrIssuerRequired):
		return ReasonUnauthorized
	case errors.Is(err, ErrDuplicateAccount):
		return ReasonDuplicateAccount
	case errors.Is(err, ErrDuplicateInvitation):
		return ReasonDuplicateInvitation
	case errors.Is(err, ErrDeliveryFailed):
		return ReasonDeliveryFailed
	case errors.Is(err, ErrInvalidOrExpired):
		return ReasonInvalidOrExpired
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonInternal
	}
}
