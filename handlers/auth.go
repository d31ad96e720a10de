package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/middleware/csrf"
	"github.com/tech-arch1tect/confadmin/middleware/gate"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/zap"
)

const invalidCredentialsMessage = "Invalid email or password"

type AuthHandler struct {
	accounts *account.Service
	policy   gate.Policy
	csrf     *config.CSRFConfig
	logger   *logging.Service
}

func NewAuthHandler(accounts *account.Service, policy gate.Policy, cfg *config.Config, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		policy:   policy,
		csrf:     &cfg.CSRF,
		logger:   logger,
	}
}

type SignInRequest struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	CallbackURL string `json:"callbackURL" form:"callbackURL"`
}

type SignInResponse struct {
	User        *account.User `json:"user"`
	RedirectURL string        `json:"redirectURL"`
}

func (h *AuthHandler) SignInPage(c echo.Context) error {
	return c.Render(http.StatusOK, "signin", map[string]any{
		"Title":       "Sign in",
		"CallbackURL": c.QueryParam(h.policy.CallbackParam),
		"CSRFToken":   csrf.Token(c, h.csrf),
	})
}

func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return h.signInFailed(c, req, http.StatusBadRequest, "Invalid request")
	}

	user, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			return h.signInFailed(c, req, http.StatusUnauthorized, invalidCredentialsMessage)
		}
		h.logger.Error("sign-in failed", zap.Error(err))
		return h.signInFailed(c, req, http.StatusInternalServerError, "Sign in failed, please try again")
	}

	if err := session.Login(c, user.ID); err != nil {
		h.logger.Error("failed to start session", zap.Error(err), zap.String("user_id", user.ID))
		return h.signInFailed(c, req, http.StatusInternalServerError, "Sign in failed, please try again")
	}

	ua := useragent.Parse(c.Request().UserAgent())
	h.logger.Info("admin signed in",
		zap.String("user_id", user.ID),
		zap.String("ip", c.RealIP()),
		zap.String("browser", ua.Name),
		zap.String("os", ua.OS),
		zap.String("device", deviceType(ua)))

	target := h.policy.CallbackTarget(req.CallbackURL)
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, SignInResponse{User: user, RedirectURL: target})
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *AuthHandler) signInFailed(c echo.Context, req SignInRequest, status int, message string) error {
	if wantsJSON(c) {
		reason := invitation.ReasonUnauthorized
		if status != http.StatusUnauthorized {
			reason = invitation.ReasonInternal
			if status == http.StatusBadRequest {
				reason = invitation.ReasonValidation
			}
		}
		return c.JSON(status, ErrorResponse{Error: message, Reason: reason})
	}
	return c.Render(status, "signin", map[string]any{
		"Title":       "Sign in",
		"Error":       message,
		"Email":       req.Email,
		"CallbackURL": req.CallbackURL,
		"CSRFToken":   csrf.Token(c, h.csrf),
	})
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	userID := session.GetUserIDAsString(c)
	if err := session.Logout(c); err != nil {
		h.logger.Error("failed to destroy session", zap.Error(err))
		return err
	}
	if userID != "" {
		h.logger.Info("admin signed out", zap.String("user_id", userID))
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, MessageResponse{Message: "Signed out"})
	}
	return c.Redirect(http.StatusSeeOther, h.policy.SignInPath)
}

func wantsJSON(c echo.Context) bool {
	req := c.Request()
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) ||
		strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Tablet:
		return "tablet"
	case ua.Mobile:
		return "mobile"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}
