// Package config provides environment-driven configuration management.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"think-relay/internal/types"
	"think-relay/internal/utils"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Constants for configuration validation
const (
	minPort = 1
	maxPort = 65535
)

// Default thinking-model list. These models are known to omit the opening
// reasoning marker while still closing the span with the closing marker.
const defaultThinkingModels = "qwen/qwq-32b,qwen-qwq-32b"

// Manager implements types.ConfigManager backed by environment variables.
type Manager struct {
	serverConfig      types.ServerConfig
	corsConfig        types.CORSConfig
	performanceConfig types.PerformanceConfig
	logConfig         types.LogConfig
	upstreamConfig    types.UpstreamConfig
	streamConfig      types.StreamConfig
}

// NewManager creates a new configuration manager from the environment.
// A .env file is loaded first when present.
func NewManager() (types.ConfigManager, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	manager := &Manager{}
	if err := manager.ReloadConfig(); err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, err
	}

	return manager, nil
}

// ReloadConfig re-reads all configuration values from the environment.
func (m *Manager) ReloadConfig() error {
	m.serverConfig = types.ServerConfig{
		Port:                    utils.ParseInteger(os.Getenv("PORT"), 3001),
		Host:                    getEnvOrDefault("HOST", "0.0.0.0"),
		ReadTimeout:             utils.ParseInteger(os.Getenv("SERVER_READ_TIMEOUT"), 120),
		WriteTimeout:            utils.ParseInteger(os.Getenv("SERVER_WRITE_TIMEOUT"), 0),
		IdleTimeout:             utils.ParseInteger(os.Getenv("SERVER_IDLE_TIMEOUT"), 120),
		GracefulShutdownTimeout: utils.ParseInteger(os.Getenv("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT"), 10),
	}

	m.corsConfig = types.CORSConfig{
		Enabled:          utils.ParseBoolean(os.Getenv("ENABLE_CORS"), true),
		AllowedOrigins:   utils.SplitAndTrim(getEnvOrDefault("ALLOWED_ORIGINS", "*"), ","),
		AllowedMethods:   utils.SplitAndTrim(getEnvOrDefault("ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"), ","),
		AllowedHeaders:   utils.SplitAndTrim(getEnvOrDefault("ALLOWED_HEADERS", "*"), ","),
		AllowCredentials: utils.ParseBoolean(os.Getenv("ALLOW_CREDENTIALS"), false),
	}

	m.performanceConfig = types.PerformanceConfig{
		MaxConcurrentRequests: utils.ParseInteger(os.Getenv("MAX_CONCURRENT_REQUESTS"), 100),
	}

	m.logConfig = types.LogConfig{
		Level:      getEnvOrDefault("LOG_LEVEL", "info"),
		Format:     getEnvOrDefault("LOG_FORMAT", "text"),
		EnableFile: utils.ParseBoolean(os.Getenv("LOG_ENABLE_FILE"), false),
		FilePath:   getEnvOrDefault("LOG_FILE_PATH", "./logs/app.log"),
	}

	m.upstreamConfig = types.UpstreamConfig{
		BaseURL:               strings.TrimRight(os.Getenv("UPSTREAM_URL"), "/"),
		RequestTimeout:        utils.ParseInteger(os.Getenv("REQUEST_TIMEOUT"), 600),
		ConnectTimeout:        utils.ParseInteger(os.Getenv("CONNECT_TIMEOUT"), 15),
		IdleConnTimeout:       utils.ParseInteger(os.Getenv("IDLE_CONN_TIMEOUT"), 120),
		ResponseHeaderTimeout: utils.ParseInteger(os.Getenv("RESPONSE_HEADER_TIMEOUT"), 600),
		MaxIdleConns:          utils.ParseInteger(os.Getenv("MAX_IDLE_CONNS"), 100),
		MaxIdleConnsPerHost:   utils.ParseInteger(os.Getenv("MAX_IDLE_CONNS_PER_HOST"), 50),
		ProxyURL:              os.Getenv("PROXY_URL"),
	}

	m.streamConfig = types.StreamConfig{
		OpenTag:        getEnvOrDefault("THINK_OPEN_TAG", "<think>"),
		CloseTag:       getEnvOrDefault("THINK_CLOSE_TAG", "</think>"),
		ThinkingModels: utils.SplitAndTrim(getEnvOrDefault("THINKING_MODELS", defaultThinkingModels), ","),
	}

	return nil
}

// Validate checks the loaded configuration for consistency.
func (m *Manager) Validate() error {
	var errs []string

	if m.serverConfig.Port < minPort || m.serverConfig.Port > maxPort {
		errs = append(errs, fmt.Sprintf("port must be between %d and %d, got %d", minPort, maxPort, m.serverConfig.Port))
	}

	if m.performanceConfig.MaxConcurrentRequests < 1 {
		errs = append(errs, "max concurrent requests cannot be less than 1")
	}

	if m.upstreamConfig.BaseURL == "" {
		errs = append(errs, "UPSTREAM_URL is required")
	} else if parsed, err := url.Parse(m.upstreamConfig.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Sprintf("UPSTREAM_URL is not a valid absolute URL: %s", m.upstreamConfig.BaseURL))
	}

	if m.streamConfig.OpenTag == "" || m.streamConfig.CloseTag == "" {
		errs = append(errs, "THINK_OPEN_TAG and THINK_CLOSE_TAG must be non-empty")
	} else if m.streamConfig.OpenTag == m.streamConfig.CloseTag {
		errs = append(errs, "THINK_OPEN_TAG and THINK_CLOSE_TAG must be distinct")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetEffectiveServerConfig returns the server configuration.
func (m *Manager) GetEffectiveServerConfig() types.ServerConfig {
	return m.serverConfig
}

// GetCORSConfig returns the CORS configuration.
func (m *Manager) GetCORSConfig() types.CORSConfig {
	return m.corsConfig
}

// GetPerformanceConfig returns the performance configuration.
func (m *Manager) GetPerformanceConfig() types.PerformanceConfig {
	return m.performanceConfig
}

// GetLogConfig returns the logging configuration.
func (m *Manager) GetLogConfig() types.LogConfig {
	return m.logConfig
}

// GetUpstreamConfig returns the upstream connection configuration.
func (m *Manager) GetUpstreamConfig() types.UpstreamConfig {
	return m.upstreamConfig
}

// GetStreamConfig returns the reasoning-extraction configuration.
func (m *Manager) GetStreamConfig() types.StreamConfig {
	return m.streamConfig
}

// DisplayServerConfig logs the effective configuration at startup.
func (m *Manager) DisplayServerConfig() {
	logrus.Info("---------- Server Configuration ----------")
	logrus.Infof("  Listen:            %s:%d", m.serverConfig.Host, m.serverConfig.Port)
	logrus.Infof("  Upstream:          %s", m.upstreamConfig.BaseURL)
	logrus.Infof("  Reasoning markers: %q ... %q", m.streamConfig.OpenTag, m.streamConfig.CloseTag)
	logrus.Infof("  Thinking models:   %d configured", len(m.streamConfig.ThinkingModels))
	logrus.Infof("  Max concurrent:    %d", m.performanceConfig.MaxConcurrentRequests)
	logrus.Infof("  Log level/format:  %s/%s", m.logConfig.Level, m.logConfig.Format)
	logrus.Info("-------------------------------------------")
}

// getEnvOrDefault returns the value of the environment variable or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
