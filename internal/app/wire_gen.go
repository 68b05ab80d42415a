//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject

package app

import (
	"simex/internal/config"
)

func buildAppWithWire(cfg *config.Config) (*App, error) {
	appBuilder := provideAppBuilder(cfg)
	return provideAppFromBuilder(appBuilder)
}

type appBuilderDeps interface {
	Build() (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps) (*App, error) {
	return b.Build()
}

func provideAppBuilder(cfg *config.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}
