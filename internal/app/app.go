// Package app provides the main application logic and lifecycle management.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"think-relay/internal/httpclient"
	"think-relay/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
)

// App holds the services and manages the application lifecycle.
type App struct {
	engine        *gin.Engine
	configManager types.ConfigManager
	clientManager *httpclient.Manager
	httpServer    *http.Server
}

// AppParams defines the dependencies for the App.
type AppParams struct {
	dig.In
	Engine        *gin.Engine
	ConfigManager types.ConfigManager
	ClientManager *httpclient.Manager
}

// NewApp is the constructor for App, with dependencies injected by dig.
func NewApp(params AppParams) *App {
	return &App{
		engine:        params.Engine,
		configManager: params.ConfigManager,
		clientManager: params.ClientManager,
	}
}

// Start launches the HTTP server.
func (a *App) Start() error {
	a.configManager.DisplayServerConfig()

	serverConfig := a.configManager.GetEffectiveServerConfig()
	addr := fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)

	a.httpServer = &http.Server{
		Addr:        addr,
		Handler:     a.engine,
		ReadTimeout: time.Duration(serverConfig.ReadTimeout) * time.Second,
		// WriteTimeout stays 0 by default: streamed responses are
		// open-ended and must not be cut off by the server.
		WriteTimeout: time.Duration(serverConfig.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(serverConfig.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on %s", addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the application.
func (a *App) Stop(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logrus.Errorf("Server shutdown error: %v", err)
		}
	}
	a.clientManager.CloseIdleConnections()
	logrus.Info("Server stopped")
}
