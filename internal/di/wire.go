//go:build wireinject
// +build wireinject

package di

import (
	"TradePilot/pkg/config"
	"TradePilot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Model registry
		ProvideRegistry,
		ProvideWatcher,

		// Risk
		ProvideRiskManager,

		// Collaborators
		ProvideCache,
		ProvideHealthTelemetry,
		ProvidePortfolioProvider,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideTrainingStore,
		ProvideRunLog,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Events
		ProvideHub,
		ProvideEventSink,

		// Use cases
		ProvideRetrainFramework,
		ProvidePredictionService,
		ProvideRetrainService,

		// HTTP surface
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
