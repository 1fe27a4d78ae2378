// Package config loads gateway configuration with priority:
// defaults -> TOML file(s) -> environment -> CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/vire-gateway/internal/common"
)

// Transport names accepted by ServerConfig.Transport.
const (
	TransportStreamableHTTP = "http"
	TransportSSE            = "sse"
)

// Config represents the gateway configuration.
type Config struct {
	Environment string               `toml:"environment"`
	Server      ServerConfig         `toml:"server"`
	API         APIConfig            `toml:"api"`
	Catalog     CatalogConfig        `toml:"catalog"`
	Cache       CacheConfig          `toml:"cache"`
	Logging     common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Name      string `toml:"name"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Endpoint  string `toml:"endpoint"`  // path serving the tool protocol
	Transport string `toml:"transport"` // "http" (streamable) or "sse"
}

// APIConfig points at the backend that executes proxied tool calls.
// When URL is empty the gateway runs with built-in tools only.
type APIConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CatalogConfig controls where tool definitions come from.
type CatalogConfig struct {
	Path    string `toml:"path"`    // local JSON file, takes priority over API fetch
	Context string `toml:"context"` // context tag filter, empty = all tools
	Retries int    `toml:"retries"` // fetch attempts against the API at startup
}

// CacheConfig controls the result cache for cacheable tools.
type CacheConfig struct {
	Enabled    bool `toml:"enabled"`
	TTLSeconds int  `toml:"ttl_seconds"`
	MaxEntries int  `toml:"max_entries"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Name:      "vire-gateway",
			Host:      "",
			Port:      4244,
			Endpoint:  "/mcp",
			Transport: TransportStreamableHTTP,
		},
		API: APIConfig{
			TimeoutSeconds: 300,
		},
		Catalog: CatalogConfig{
			Retries: 3,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 60,
			MaxEntries: 256,
		},
		Logging: common.LoggingConfig{
			Level:      "info",
			Outputs:    []string{"console", "file"},
			FilePath:   "logs/vire-gateway.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadFromFile loads configuration from a single file (or defaults when empty).
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files.
// Later files override earlier files; environment overrides all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies VIRE_GATEWAY_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("VIRE_GATEWAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VIRE_GATEWAY_HOST"); host != "" {
		config.Server.Host = host
	}
	if endpoint := os.Getenv("VIRE_GATEWAY_ENDPOINT"); endpoint != "" {
		config.Server.Endpoint = endpoint
	}
	if transport := os.Getenv("VIRE_GATEWAY_TRANSPORT"); transport != "" {
		config.Server.Transport = transport
	}
	if url := os.Getenv("VIRE_GATEWAY_API_URL"); url != "" {
		config.API.URL = url
	}
	if tag := os.Getenv("VIRE_GATEWAY_CATALOG_CONTEXT"); tag != "" {
		config.Catalog.Context = tag
	}
	if level := os.Getenv("VIRE_GATEWAY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host, transport string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if transport != "" {
		config.Server.Transport = transport
	}
}

// Validate checks mandatory fields and returns a list of issues, empty when valid.
func (c *Config) Validate() []string {
	var issues []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if !strings.HasPrefix(c.Server.Endpoint, "/") {
		issues = append(issues, fmt.Sprintf("server.endpoint must start with / (got %q)", c.Server.Endpoint))
	}
	switch c.Server.Transport {
	case TransportStreamableHTTP, TransportSSE:
	default:
		issues = append(issues, fmt.Sprintf("server.transport must be %q or %q (got %q)", TransportStreamableHTTP, TransportSSE, c.Server.Transport))
	}
	if c.Catalog.Retries < 0 {
		issues = append(issues, fmt.Sprintf("catalog.retries must not be negative (got %d)", c.Catalog.Retries))
	}

	return issues
}

// IsDevMode reports whether the gateway runs with the dev environment setting.
func (c *Config) IsDevMode() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "dev"
}
