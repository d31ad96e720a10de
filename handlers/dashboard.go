package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/middleware/csrf"
	"github.com/tech-arch1tect/confadmin/middleware/gate"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	accounts    *account.Service
	invitations *invitation.Service
	policy      gate.Policy
	csrf        *config.CSRFConfig
	logger      *logging.Service
}

func NewDashboardHandler(accounts *account.Service, invitations *invitation.Service, policy gate.Policy, cfg *config.Config, logger *logging.Service) *DashboardHandler {
	return &DashboardHandler{
		accounts:    accounts,
		invitations: invitations,
		policy:      policy,
		csrf:        &cfg.CSRF,
		logger:      logger,
	}
}

func (h *DashboardHandler) Show(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.accounts.FindByID(ctx, session.GetUserIDAsString(c))
	if err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			if err := session.Logout(c); err != nil {
				h.logger.Error("failed to destroy stale session", zap.Error(err))
				return err
			}
			return c.Redirect(http.StatusSeeOther, h.policy.SignInPath)
		}
		h.logger.Error("failed to load dashboard user", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	entries, err := h.invitations.List(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.Render(http.StatusOK, "dashboard", map[string]any{
		"Title":       "Dashboard",
		"UserName":    user.Name,
		"Invitations": entries,
		"CSRFToken":   csrf.Token(c, h.csrf),
	})
}
