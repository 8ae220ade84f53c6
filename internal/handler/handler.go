// Package handler provides the non-proxy HTTP handlers.
package handler

import (
	"net/http"
	"time"

	"think-relay/internal/policy"
	"think-relay/internal/types"
	"think-relay/internal/version"

	"github.com/gin-gonic/gin"
)

// Server bundles the dependencies for the service endpoints.
type Server struct {
	configManager types.ConfigManager
	modelPolicy   *policy.ModelPolicy
}

// NewServer creates a new handler server.
func NewServer(configManager types.ConfigManager, modelPolicy *policy.ModelPolicy) *Server {
	return &Server{
		configManager: configManager,
		modelPolicy:   modelPolicy,
	}
}

// Health reports service liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   version.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the effective runtime configuration relevant to clients.
func (s *Server) Status(c *gin.Context) {
	streamCfg := s.configManager.GetStreamConfig()
	c.JSON(http.StatusOK, gin.H{
		"version":         version.Version,
		"upstream":        s.configManager.GetUpstreamConfig().BaseURL,
		"open_tag":        streamCfg.OpenTag,
		"close_tag":       streamCfg.CloseTag,
		"thinking_models": s.modelPolicy.Size(),
	})
}
