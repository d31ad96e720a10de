package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/zap"
)

type InvitationHandler struct {
	invitations *invitation.Service
	accounts    *account.Service
	logger      *logging.Service
}

func NewInvitationHandler(invitations *invitation.Service, accounts *account.Service, logger *logging.Service) *InvitationHandler {
	return &InvitationHandler{
		invitations: invitations,
		accounts:    accounts,
		logger:      logger,
	}
}

type CreateInvitationRequest struct {
	Email string `json:"email"`
}

type InvitationSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreateInvitationResponse struct {
	Message    string            `json:"message"`
	Invitation InvitationSummary `json:"invitation"`
}

type ListInvitationsResponse struct {
	Invitations []invitation.Entry `json:"invitations"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// currentUser resolves the session user, rejecting sessions whose account no longer exists.
func (h *InvitationHandler) currentUser(c echo.Context) (*account.User, error) {
	userID := session.GetUserIDAsString(c)
	if userID == "" {
		return nil, account.ErrUserNotFound
	}
	return h.accounts.FindByID(c.Request().Context(), userID)
}

func (h *InvitationHandler) Create(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		if !errors.Is(err, account.ErrUserNotFound) {
			h.logger.Error("failed to resolve session user", zap.Error(err))
		}
		return unauthorized(c)
	}

	var req CreateInvitationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Reason: invitation.ReasonValidation})
	}

	inv, err := h.invitations.Create(c.Request().Context(), req.Email, user.ID)
	if err != nil {
		return writeError(c, err, "Failed to create invitation")
	}

	return c.JSON(http.StatusOK, CreateInvitationResponse{
		Message: "Invitation sent successfully",
		Invitation: InvitationSummary{
			ID:        inv.ID,
			Email:     inv.Email,
			ExpiresAt: inv.ExpiresAt,
		},
	})
}

func (h *InvitationHandler) List(c echo.Context) error {
	entries, err := h.invitations.List(c.Request().Context())
	if err != nil {
		return writeError(c, err, "Failed to fetch invitations")
	}
	return c.JSON(http.StatusOK, ListInvitationsResponse{Invitations: entries})
}

func (h *InvitationHandler) Delete(c echo.Context) error {
	if err := h.invitations.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err, "Failed to delete invitation")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Invitation deleted successfully"})
}

// Validate is public. An unusable token is a normal answer, not an error status.
func (h *InvitationHandler) Validate(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, ValidateResponse{
			Error:  "Token is required",
			Reason: invitation.ReasonValidation,
		})
	}

	inv, err := h.invitations.Validate(c.Request().Context(), req.Token)
	if err != nil {
		reason := invitation.Reason(err)
		return c.JSON(validateStatus(reason), ValidateResponse{
			Error:  messageFor(err, "Failed to validate invitation"),
			Reason: reason,
		})
	}
	return c.JSON(http.StatusOK, ValidateResponse{Valid: true, Email: inv.Email})
}

func validateStatus(reason string) int {
	if reason == invitation.ReasonInvalidOrExpired {
		return http.StatusOK
	}
	return statusFor(reason)
}

// Use consumes a token. The signed-in user, if any, is recorded as the consumer.
func (h *InvitationHandler) Use(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Token is required", Reason: invitation.ReasonValidation})
	}

	consumerID := ""
	if session.IsAuthenticated(c) {
		if user, err := h.currentUser(c); err == nil {
			consumerID = user.ID
		}
	}

	if err := h.invitations.Consume(c.Request().Context(), req.Token, consumerID); err != nil {
		return writeError(c, err, "Failed to mark invitation as used")
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Invitation marked as used"})
}
