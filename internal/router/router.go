// Package router assembles the gin engine and route table.
package router

import (
	"think-relay/internal/handler"
	"think-relay/internal/middleware"
	"think-relay/internal/proxy"
	"think-relay/internal/types"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the global middleware chain and all
// routes registered.
func NewRouter(
	serverHandler *handler.Server,
	proxyServer *proxy.ProxyServer,
	configManager types.ConfigManager,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Register global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(configManager.GetLogConfig()))
	router.Use(middleware.CORS(configManager.GetCORSConfig()))
	router.Use(middleware.RateLimiter(configManager.GetPerformanceConfig()))

	registerSystemRoutes(router, serverHandler)
	registerProxyRoutes(router, proxyServer)

	return router
}

// registerSystemRoutes registers system-level routes
func registerSystemRoutes(router *gin.Engine, serverHandler *handler.Server) {
	router.GET("/health", serverHandler.Health)
	router.GET("/status", serverHandler.Status)
}

// registerProxyRoutes registers the upstream passthrough routes. All /v1
// traffic is proxied; streamed chat completions are re-framed in flight.
func registerProxyRoutes(router *gin.Engine, proxyServer *proxy.ProxyServer) {
	router.Any("/v1/*path", proxyServer.HandleProxy)
}
