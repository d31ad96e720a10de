package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store  Store
	Rate   int
	Period time.Duration
	// Scope separates counters of routes that share a client.
	Scope  string
	Logger *logging.Service
}

// Middleware limits each client IP to Rate requests per Period.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := KeyFor(c, cfg.Scope)
			count, resetAt := cfg.Store.Hit(key, cfg.Period)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Rate))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(cfg.Rate-count, 0)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > cfg.Rate {
				cfg.Logger.Warn("rate limit exceeded",
					zap.String("key", key),
					zap.String("path", c.Path()))
				h.Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":  "Too many requests",
					"reason": "rate_limited",
				})
			}
			return next(c)
		}
	}
}

func KeyFor(c echo.Context, scope string) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	if scope == "" {
		return "rate_limit:" + ip
	}
	return "rate_limit:" + scope + ":" + ip
}
