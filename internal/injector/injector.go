//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/racer/internal/config"
	"github.com/zeusync/racer/internal/game"
)

// InitializeApp assembles the racer process from its configuration.
func InitializeApp(cfg config.Config) (*game.App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
