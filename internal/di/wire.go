//go:build wireinject
// +build wireinject

package di

import (
	"TickFeed/pkg/config"
	"TickFeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,
		ProvidePort,

		ProvideExchangeFactory,
		ProvideCandleCache,
		ProvideAggregateSink,

		ProvideBackfiller,
		ProvideController,

		ProvideApp,
	)
	return &server.App{}, nil
}
