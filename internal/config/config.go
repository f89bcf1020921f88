// Package config loads settings from environment variables and an
// optional .env file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig holds configuration for the studio API server.
type ServerConfig struct {
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool
	LogLevel         string
	LogFile          string

	// Capture settings
	BrowserPath string

	// Generation backend settings
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// LoadServer reads server configuration from environment variables.
func LoadServer() (*ServerConfig, error) {
	loadDotenv()

	cfg := &ServerConfig{
		BindAddr:         getEnvOrDefault("FLAWLESS_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   splitList(getEnvOrDefault("FLAWLESS_BIND_CANDIDATES", "127.0.0.1:8191,127.0.0.1:8192")),
		PortAutoFallback: getEnvBoolOrDefault("FLAWLESS_PORT_AUTO_FALLBACK", true),
		LogLevel:         strings.ToLower(getEnvOrDefault("FLAWLESS_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("FLAWLESS_LOG_FILE", "logs/flawless_server.log"),
		BrowserPath:      getEnvOrDefault("FLAWLESS_BROWSER_PATH", ""),
		APIKey:           getEnvOrDefault("OPENAI_API_KEY", ""),
		BaseURL:          getEnvOrDefault("FLAWLESS_BACKEND_BASE_URL", ""),
		Model:            getEnvOrDefault("FLAWLESS_MODEL", "gpt-4o"),
		MaxTokens:        getEnvIntOrDefault("FLAWLESS_MAX_TOKENS", 16000),
	}
	if cfg.MaxTokens < 1000 {
		cfg.MaxTokens = 1000
	}
	return cfg, nil
}

// BuilderConfig holds configuration for the terminal builder client.
type BuilderConfig struct {
	ServerURL   string
	PreviewAddr string
	LogLevel    string
}

// LoadBuilder reads builder configuration from environment variables.
func LoadBuilder() (*BuilderConfig, error) {
	loadDotenv()

	return &BuilderConfig{
		ServerURL:   getEnvOrDefault("FLAWLESS_SERVER_URL", "http://127.0.0.1:8190"),
		PreviewAddr: getEnvOrDefault("FLAWLESS_PREVIEW_ADDR", "127.0.0.1:8195"),
		LogLevel:    strings.ToLower(getEnvOrDefault("FLAWLESS_LOG_LEVEL", "info")),
	}, nil
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
