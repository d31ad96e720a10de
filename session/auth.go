package session

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

const (
	UserIDKey        = "_user_id"
	AuthenticatedKey = "_authenticated"
)

// Login binds the user to a fresh session token.
func Login(c echo.Context, userID string) error {
	manager := GetManager(c)
	if manager == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "sessions are disabled")
	}
	ctx := c.Request().Context()
	if err := manager.RenewToken(ctx); err != nil {
		return err
	}
	manager.Put(ctx, UserIDKey, userID)
	manager.Put(ctx, AuthenticatedKey, true)
	return nil
}

func Logout(c echo.Context) error {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	return manager.Destroy(c.Request().Context())
}

func GetUserIDAsString(c echo.Context) string {
	manager := GetManager(c)
	if manager == nil {
		return ""
	}
	return manager.GetString(c.Request().Context(), UserIDKey)
}

func IsAuthenticated(c echo.Context) bool {
	manager := GetManager(c)
	if manager == nil {
		return false
	}
	ctx := c.Request().Context()
	return manager.GetBool(ctx, AuthenticatedKey) && manager.GetString(ctx, UserIDKey) != ""
}

// RequireAuth rejects unauthenticated API requests with a JSON 401.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsAuthenticated(c) {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":  "Unauthorized",
					"reason": "unauthorized",
				})
			}
			return next(c)
		}
	}
}

// RequireAuthWeb sends unauthenticated page requests to loginURL, remembering where they were headed.
func RequireAuthWeb(loginURL, callbackParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsAuthenticated(c) {
				return next(c)
			}
			if err := clearStaleSession(c); err != nil {
				return err
			}
			target := loginURL
			if callbackParam != "" {
				target += "?" + url.Values{callbackParam: {c.Request().URL.Path}}.Encode()
			}
			return c.Redirect(http.StatusFound, target)
		}
	}
}

// clearStaleSession expires session cookies that no longer map to a live
// session, so the entry-point redirect stops treating the browser as signed in.
func clearStaleSession(c echo.Context) error {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	for _, name := range MarkerCookieNames(manager.config.Name) {
		if _, err := c.Cookie(name); err != nil {
			continue
		}
		if name == manager.Cookie.Name {
			if err := manager.Destroy(c.Request().Context()); err != nil {
				return err
			}
			continue
		}
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     manager.Cookie.Path,
			Domain:   manager.Cookie.Domain,
			MaxAge:   -1,
			Secure:   manager.Cookie.Secure,
			HttpOnly: true,
		})
	}
	return nil
}
