package testutils

import (
	"time"

	"github.com/tech-arch1tect/confadmin/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test Portal",
			URL:  "http://localhost:8080",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Session: config.SessionConfig{
			Enabled:  true,
			Store:    "memory",
			Name:     "confadmin.session_token",
			MaxAge:   time.Hour,
			Path:     "/",
			HttpOnly: true,
			SameSite: "lax",
		},
		Auth: config.AuthConfig{
			MinLength:  8,
			BcryptCost: bcrypt.MinCost,
		},
		Mail: config.MailConfig{
			Host:        "localhost",
			Port:        587,
			Encryption:  "none",
			FromAddress: "admin@example.com",
			FromName:    "Test Portal",
		},
		Gate: config.GateConfig{
			APIPrefix:          "/api/",
			AllowedOrigins:     []string{"http://localhost:3000", "http://localhost:3001"},
			PermissiveFallback: true,
			ProtectedPrefixes:  []string{"/dashboard"},
			ProtectDashboard:   true,
			SignInPath:         "/",
			SignUpPath:         "/signup",
			DashboardPath:      "/dashboard",
			CallbackParam:      "callbackURL",
			PreflightMaxAge:    24 * time.Hour,
		},
		Invitation: config.InvitationConfig{
			Expiry:        7 * 24 * time.Hour,
			TokenLength:   32,
			SignupPath:    "/signup",
			PurgeSchedule: "@daily",
		},
		CSRF: config.CSRFConfig{
			Enabled: false,
		},
		RateLimit: config.RateLimitConfig{
			Rate:   100,
			Period: time.Minute,
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var TestPasswords = struct {
	Valid    string
	TooShort string
}{
	Valid:    "Password123",
	TooShort: "Pass1",
}
