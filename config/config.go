package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig        `envPrefix:"APP_"`
	Server     ServerConfig     `envPrefix:"SERVER_"`
	Log        LogConfig        `envPrefix:"LOG_"`
	Database   DatabaseConfig   `envPrefix:"DATABASE_"`
	Session    SessionConfig    `envPrefix:"SESSION_"`
	Auth       AuthConfig       `envPrefix:"AUTH_"`
	Mail       MailConfig       `envPrefix:"MAIL_"`
	Templates  TemplatesConfig  `envPrefix:"TEMPLATES_"`
	Gate       GateConfig       `envPrefix:"GATE_"`
	Invitation InvitationConfig `envPrefix:"INVITATION_"`
	CSRF       CSRFConfig       `envPrefix:"CSRF_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	Metrics    MetricsConfig    `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Conference Admin Portal"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"app.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SessionConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"true"`
	Store    string        `env:"STORE" envDefault:"database"`
	Name     string        `env:"NAME" envDefault:"confadmin.session_token"`
	MaxAge   time.Duration `env:"MAX_AGE" envDefault:"168h"`
	Path     string        `env:"PATH" envDefault:"/"`
	Domain   string        `env:"DOMAIN"`
	Secure   bool          `env:"SECURE" envDefault:"false"`
	HttpOnly bool          `env:"HTTP_ONLY" envDefault:"true"`
	SameSite string        `env:"SAME_SITE" envDefault:"lax"`
}

type AuthConfig struct {
	MinLength  int `env:"MIN_LENGTH" envDefault:"8"`
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type MailConfig struct {
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS" envDefault:"admin@localhost"`
	FromName     string `env:"FROM_NAME"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

type TemplatesConfig struct {
	Dir         string `env:"DIR"`
	Extension   string `env:"EXTENSION" envDefault:".html"`
	Development bool   `env:"DEVELOPMENT" envDefault:"false"`
}

// GateConfig drives the pre-route request gate. It is read once at start-up.
type GateConfig struct {
	APIPrefix          string        `env:"API_PREFIX" envDefault:"/api/"`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`
	PermissiveFallback bool          `env:"PERMISSIVE_FALLBACK" envDefault:"true"`
	ProtectedPrefixes  []string      `env:"PROTECTED_PREFIXES" envSeparator:"," envDefault:"/dashboard"`
	ProtectDashboard   bool          `env:"PROTECT_DASHBOARD" envDefault:"true"`
	SignInPath         string        `env:"SIGN_IN_PATH" envDefault:"/"`
	SignUpPath         string        `env:"SIGN_UP_PATH" envDefault:"/signup"`
	DashboardPath      string        `env:"DASHBOARD_PATH" envDefault:"/dashboard"`
	CallbackParam      string        `env:"CALLBACK_PARAM" envDefault:"callbackURL"`
	PreflightMaxAge    time.Duration `env:"PREFLIGHT_MAX_AGE" envDefault:"24h"`
}

type InvitationConfig struct {
	Expiry        time.Duration `env:"EXPIRY" envDefault:"168h"`
	TokenLength   int           `env:"TOKEN_LENGTH" envDefault:"32"`
	SignupPath    string        `env:"SIGNUP_PATH" envDefault:"/signup"`
	Retention     time.Duration `env:"RETENTION" envDefault:"0s"`
	PurgeSchedule string        `env:"PURGE_SCHEDULE" envDefault:"@daily"`
}

type CSRFConfig struct {
	Enabled        bool   `env:"ENABLED" envDefault:"true"`
	TokenLength    uint8  `env:"TOKEN_LENGTH" envDefault:"32"`
	TokenLookup    string `env:"TOKEN_LOOKUP" envDefault:"form:_csrf"`
	ContextKey     string `env:"CONTEXT_KEY" envDefault:"csrf"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"_csrf"`
	CookieDomain   string `env:"COOKIE_DOMAIN"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieMaxAge   int    `env:"COOKIE_MAX_AGE" envDefault:"86400"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieHTTPOnly bool   `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"lax"`
}

type RateLimitConfig struct {
	Rate   int           `env:"RATE" envDefault:"20"`
	Period time.Duration `env:"PERIOD" envDefault:"1m"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}
	return nil
}

func Validate(cfg *Config) error {
	if err := validateSessionConfig(&cfg.Session); err != nil {
		return err
	}
	if err := validateGateConfig(&cfg.Gate); err != nil {
		return err
	}
	if err := validateInvitationConfig(&cfg.Invitation); err != nil {
		return err
	}
	return nil
}

func validateSessionConfig(cfg *SessionConfig) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Store {
	case "memory", "database":
	default:
		return fmt.Errorf("session store must be: memory or database (got %q)", cfg.Store)
	}
	switch cfg.SameSite {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("session same-site must be: strict, lax, or none (got %q)", cfg.SameSite)
	}
	if cfg.Name == "" {
		return errors.New("session cookie name cannot be empty")
	}
	return nil
}

func validateGateConfig(cfg *GateConfig) error {
	if len(cfg.AllowedOrigins) == 0 {
		return errors.New("gate allowed origins cannot be empty")
	}
	paths := map[string]string{
		"api prefix":     cfg.APIPrefix,
		"sign-in path":   cfg.SignInPath,
		"sign-up path":   cfg.SignUpPath,
		"dashboard path": cfg.DashboardPath,
	}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("gate %s must start with \"/\" (got %q)", name, p)
		}
	}
	for _, p := range cfg.ProtectedPrefixes {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("gate protected prefix must start with \"/\" (got %q)", p)
		}
	}
	if cfg.CallbackParam == "" {
		return errors.New("gate callback parameter cannot be empty")
	}
	return nil
}

func validateInvitationConfig(cfg *InvitationConfig) error {
	if cfg.Expiry <= 0 {
		return errors.New("invitation expiry must be positive")
	}
	if cfg.TokenLength < 16 {
		return errors.New("invitation token length must be at least 16 bytes")
	}
	if cfg.TokenLength > 128 {
		return errors.New("invitation token length cannot exceed 128 bytes")
	}
	if cfg.Retention < 0 {
		return errors.New("invitation retention cannot be negative")
	}
	return nil
}
