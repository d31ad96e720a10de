// Package confadmin runs the conference admin portal: invitation-only admin
// onboarding behind a request gate.
package confadmin

import (
	"github.com/tech-arch1tect/confadmin/app"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/internal/options"
	"go.uber.org/fx"
)

type App = app.App

type Option = options.Option

func New(opts ...Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) Option {
	return options.WithConfig(cfg)
}

func WithoutListener() Option {
	return options.WithoutListener()
}

func WithModels(models ...any) Option {
	return options.WithModels(models...)
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return options.WithFxOptions(fxOpts...)
}
