package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/middleware/csrf"
	"github.com/tech-arch1tect/confadmin/middleware/gate"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/signup"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/zap"
)

type SignupHandler struct {
	invitations *invitation.Service
	provisioner *signup.Provisioner
	policy      gate.Policy
	auth        config.AuthConfig
	csrf        *config.CSRFConfig
	logger      *logging.Service
}

func NewSignupHandler(invitations *invitation.Service, provisioner *signup.Provisioner, policy gate.Policy, cfg *config.Config, logger *logging.Service) *SignupHandler {
	return &SignupHandler{
		invitations: invitations,
		provisioner: provisioner,
		policy:      policy,
		auth:        cfg.Auth,
		csrf:        &cfg.CSRF,
		logger:      logger,
	}
}

type SignupRequest struct {
	Token    string `form:"token"`
	Name     string `form:"name"`
	Password string `form:"password"`
}

func (h *SignupHandler) Page(c echo.Context) error {
	token := c.QueryParam("token")
	inv, err := h.invitations.Validate(c.Request().Context(), token)
	if err != nil {
		return h.invalid(c, err)
	}
	return h.form(c, http.StatusOK, token, inv.Email, "", "")
}

func (h *SignupHandler) Submit(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return h.invalid(c, invitation.ErrTokenRequired)
	}

	ctx := c.Request().Context()
	user, err := h.provisioner.Register(ctx, req.Token, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, invitation.ErrInvalidOrExpired) || errors.Is(err, invitation.ErrTokenRequired) {
			return h.invalid(c, err)
		}

		inv, verr := h.invitations.Validate(ctx, req.Token)
		if verr != nil {
			return h.invalid(c, verr)
		}
		return h.form(c, http.StatusBadRequest, req.Token, inv.Email, req.Name, h.registrationMessage(err))
	}

	if err := session.Login(c, user.ID); err != nil {
		h.logger.Error("failed to start session after signup", zap.Error(err), zap.String("user_id", user.ID))
		return c.Redirect(http.StatusSeeOther, h.policy.SignInPath)
	}
	return c.Redirect(http.StatusSeeOther, h.policy.DashboardPath)
}

func (h *SignupHandler) registrationMessage(err error) string {
	switch {
	case errors.Is(err, account.ErrNameRequired):
		return "Name is required"
	case errors.Is(err, account.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", h.auth.MinLength)
	case errors.Is(err, account.ErrEmailTaken):
		return "An account with this email already exists"
	default:
		return "Could not create your account, please try again"
	}
}

func (h *SignupHandler) form(c echo.Context, status int, token, email, name, message string) error {
	return c.Render(status, "signup", map[string]any{
		"Title":             "Sign up",
		"Token":             token,
		"Email":             email,
		"Name":              name,
		"Error":             message,
		"MinPasswordLength": h.auth.MinLength,
		"CSRFToken":         csrf.Token(c, h.csrf),
	})
}

func (h *SignupHandler) invalid(c echo.Context, err error) error {
	if !errors.Is(err, invitation.ErrInvalidOrExpired) && !errors.Is(err, invitation.ErrTokenRequired) {
		h.logger.Error("failed to load invitation for signup", zap.Error(err))
	}
	return c.Render(http.StatusOK, "invalid_invitation", map[string]any{
		"Title":      "Invitation unavailable",
		"Message":    "Invalid or expired invitation link",
		"SignInPath": h.policy.SignInPath,
	})
}
