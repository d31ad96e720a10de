package options

import (
	"github.com/tech-arch1tect/confadmin/config"
	"go.uber.org/fx"
)

type Options struct {
	Config *config.Config
	// Listen binds the HTTP server on start. Tests serve requests in-process instead.
	Listen         bool
	DatabaseModels []any
	ExtraFxOptions []fx.Option
}

type Option func(*Options)

func Defaults() *Options {
	return &Options{Listen: true}
}

func Apply(opts ...Option) *Options {
	o := Defaults()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithoutListener() Option {
	return func(opts *Options) {
		opts.Listen = false
	}
}

// WithModels migrates additional models next to the built-in ones.
func WithModels(models ...any) Option {
	return func(opts *Options) {
		opts.DatabaseModels = append(opts.DatabaseModels, models...)
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}
