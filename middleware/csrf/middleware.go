package csrf

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tech-arch1tect/confadmin/config"
)

const defaultContextKey = "csrf"

// Middleware protects HTML form posts. It is a pass-through when disabled.
func Middleware(cfg *config.CSRFConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	sameSite := http.SameSiteLaxMode
	switch cfg.CookieSameSite {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}

	contextKey := cfg.ContextKey
	if contextKey == "" {
		contextKey = defaultContextKey
	}

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLength:    cfg.TokenLength,
		TokenLookup:    cfg.TokenLookup,
		ContextKey:     contextKey,
		CookieName:     cfg.CookieName,
		CookieDomain:   cfg.CookieDomain,
		CookiePath:     cfg.CookiePath,
		CookieMaxAge:   cfg.CookieMaxAge,
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: cfg.CookieHTTPOnly,
		CookieSameSite: sameSite,
	})
}

// Token returns the token to embed in forms, or "" when protection is off.
func Token(c echo.Context, cfg *config.CSRFConfig) string {
	key := cfg.ContextKey
	if key == "" {
		key = defaultContextKey
	}
	if token, ok := c.Get(key).(string); ok {
		return token
	}
	return ""
}
