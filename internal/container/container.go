// Package container wires the application's dependencies together.
package container

import (
	"think-relay/internal/app"
	"think-relay/internal/config"
	"think-relay/internal/handler"
	"think-relay/internal/httpclient"
	"think-relay/internal/policy"
	"think-relay/internal/proxy"
	"think-relay/internal/router"
	"think-relay/internal/types"

	"go.uber.org/dig"
)

// BuildContainer creates the dependency injection container with all
// application constructors registered.
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	constructors := []any{
		config.NewManager,
		httpclient.NewManager,
		newModelPolicy,
		proxy.NewProxyServer,
		handler.NewServer,
		router.NewRouter,
		app.NewApp,
	}

	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// newModelPolicy builds the read-only thinking-model table from config.
func newModelPolicy(configManager types.ConfigManager) *policy.ModelPolicy {
	return policy.New(configManager.GetStreamConfig().ThinkingModels)
}
