package ratelimit

import (
	"context"
	"time"

	"go.uber.org/fx"
)

func ProvideStore(lc fx.Lifecycle) Store {
	store := NewMemoryStore()
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.StartCleanup(time.Minute)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			store.Stop()
			return nil
		},
	})
	return store
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
)
