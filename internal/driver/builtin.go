package driver

import (
	"context"
	"fmt"
	"log/slog"

	"remark-bot/internal/driver/discord"
)

// NewBuiltinRegistry constructs the runtime registry with all built-in drivers.
func NewBuiltinRegistry() (*Registry, error) {
	return NewRegistry([]Descriptor{
		{
			Type:     discord.DriverType,
			Platform: discord.DriverPlatform,
			Builder: func(
				_ context.Context,
				definition Definition,
				builderLogger *slog.Logger,
			) (Runtime, error) {
				runtimeDriver, dispatcher, err := discord.BuildRuntimeFromConfig(
					definition.Name,
					builderLogger,
					definition.Config,
				)
				if err != nil {
					return Runtime{}, fmt.Errorf("build discord runtime from config: %w", err)
				}

				return Runtime{
					Platform:   discord.DriverPlatform,
					Driver:     runtimeDriver,
					Dispatcher: dispatcher,
				}, nil
			},
		},
	})
}
