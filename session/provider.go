package session

import (
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/gormstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SecureCookiePrefix is prepended to the cookie name when sessions are served over HTTPS only.
const SecureCookiePrefix = "__Secure-"

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
}

// CookieName is the name the session cookie is actually issued under.
func CookieName(cfg config.SessionConfig) string {
	if cfg.Secure {
		return SecureCookiePrefix + cfg.Name
	}
	return cfg.Name
}

// MarkerCookieNames lists every cookie name that indicates a session may exist,
// secure variant first.
func MarkerCookieNames(base string) []string {
	return []string{SecureCookiePrefix + base, base}
}

func NewManager(cfg config.SessionConfig, store scs.Store) *Manager {
	sessionManager := scs.New()
	sessionManager.Store = store
	sessionManager.Lifetime = cfg.MaxAge
	sessionManager.IdleTimeout = cfg.MaxAge
	sessionManager.Cookie.Name = CookieName(cfg)
	sessionManager.Cookie.Path = cfg.Path
	sessionManager.Cookie.Domain = cfg.Domain
	sessionManager.Cookie.Secure = cfg.Secure
	sessionManager.Cookie.HttpOnly = cfg.HttpOnly

	switch cfg.SameSite {
	case "strict":
		sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	case "none":
		sessionManager.Cookie.SameSite = http.SameSiteNoneMode
	default:
		sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	}

	return &Manager{
		SessionManager: sessionManager,
		config:         cfg,
	}
}

func ProvideSessionManager(cfg *config.Config, db *gorm.DB, logger *logging.Service) (*Manager, error) {
	if !cfg.Session.Enabled {
		logger.Warn("sessions disabled, every authenticated route will answer 401")
		return nil, nil
	}

	var store scs.Store
	switch cfg.Session.Store {
	case "memory":
		store = memstore.New()
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database session store requires a database")
		}
		gs, err := gormstore.New(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create database session store: %w", err)
		}
		store = gs
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Session.Store)
	}

	manager := NewManager(cfg.Session, store)
	logger.Info("session manager initialized",
		zap.String("store", cfg.Session.Store),
		zap.String("cookie", manager.Cookie.Name))
	return manager, nil
}

var Module = fx.Module("session",
	fx.Provide(ProvideSessionManager),
)
