package app

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/handlers"
	"github.com/tech-arch1tect/confadmin/middleware/csrf"
	"github.com/tech-arch1tect/confadmin/middleware/ratelimit"
	"github.com/tech-arch1tect/confadmin/openapi"
	"github.com/tech-arch1tect/confadmin/server"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/metrics"
	"github.com/tech-arch1tect/confadmin/services/templates"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/fx"
)

type routeDeps struct {
	fx.In

	Config    *config.Config
	Logger    *logging.Service
	Server    *server.Server
	Sessions  *session.Manager
	Templates *templates.Service
	Limits    ratelimit.Store
	Metrics   *metrics.Service
	Document  *openapi.Document

	Invitations *handlers.InvitationHandler
	Auth        *handlers.AuthHandler
	Signup      *handlers.SignupHandler
	Dashboard   *handlers.DashboardHandler
}

func registerRoutes(d routeDeps) {
	cfg := d.Config
	srv := d.Server

	srv.SetRenderer(d.Templates.Renderer())
	srv.Use(session.Middleware(d.Sessions))

	if cfg.Metrics.Enabled {
		srv.Get(cfg.Metrics.Path, echo.WrapHandler(d.Metrics.Handler()))
	}

	api := srv.Group("/api")
	api.GET("/openapi.json", d.Document.JSONHandler())
	api.GET("/openapi.yaml", d.Document.YAMLHandler())

	limited := ratelimit.Middleware(ratelimit.Config{
		Store:  d.Limits,
		Rate:   cfg.RateLimit.Rate,
		Period: cfg.RateLimit.Period,
		Scope:  "invitations",
		Logger: d.Logger.Named("ratelimit"),
	})
	api.POST("/invitations/validate", d.Invitations.Validate, limited)
	api.POST("/invitations/use", d.Invitations.Use, limited)

	invitations := api.Group("/invitations", session.RequireAuth())
	invitations.POST("", d.Invitations.Create)
	invitations.GET("", d.Invitations.List)
	invitations.DELETE("/:id", d.Invitations.Delete)

	forms := csrf.Middleware(&cfg.CSRF)
	requireSignIn := session.RequireAuthWeb(cfg.Gate.SignInPath, cfg.Gate.CallbackParam)

	srv.Get(cfg.Gate.SignInPath, d.Auth.SignInPage, forms)
	srv.Post("/sign-in", d.Auth.SignIn, forms)
	srv.Post("/sign-out", d.Auth.SignOut, forms)
	srv.Get(cfg.Gate.SignUpPath, d.Signup.Page, forms)
	srv.Post(cfg.Gate.SignUpPath, d.Signup.Submit, forms)
	srv.Get(cfg.Gate.DashboardPath, d.Dashboard.Show, forms, requireSignIn)
}
