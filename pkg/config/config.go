package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CheckerDocker is the only checker type the engine currently knows.
const CheckerDocker = "docker"

// Config is the full runtime configuration, loaded from a YAML file with
// environment overrides (prefix PVEMON_). Components receive the parts they
// need at construction.
type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" validate:"omitempty,oneof=json console"`

	Checker CheckerConfig `yaml:"checker"`
	Cache   CacheConfig   `yaml:"cache"`
	Influx  InfluxConfig  `yaml:"influx"`
	Server  ServerConfig  `yaml:"server"`
	Hosts   []HostConfig  `yaml:"hosts" validate:"dive"`
}

// CheckerConfig controls the docker checker passes.
type CheckerConfig struct {
	Architecture string `yaml:"architecture" env:"ARCHITECTURE" validate:"required"`
	OS           string `yaml:"os" env:"OS" validate:"required"`

	// RegistryHubs is a comma-separated list of substrings marking image
	// repositories hosted outside the default hub; tag search is skipped
	// for those.
	RegistryHubs string `yaml:"registry_hubs" env:"REGISTRY_HUBS"`

	// Blacklist is a comma-separated list of substrings; images whose
	// reference contains one are excluded from the report.
	Blacklist string `yaml:"blacklist" env:"BLACKLIST"`
}

// RegistryHubList returns the parsed registry hub substrings.
func (c CheckerConfig) RegistryHubList() []string {
	return splitList(c.RegistryHubs)
}

// BlacklistList returns the parsed blacklist substrings.
func (c CheckerConfig) BlacklistList() []string {
	return splitList(c.Blacklist)
}

// CacheConfig controls the manifest cache. An empty path selects the
// in-memory store.
type CacheConfig struct {
	Path       string `yaml:"path" env:"CACHE_PATH"`
	TTLSeconds int    `yaml:"ttl_seconds" env:"CACHE_TTL" validate:"min=0"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// InfluxConfig describes the telemetry endpoint. An empty URL disables
// pushing.
type InfluxConfig struct {
	URL       string `yaml:"url" env:"INFLUX_URL" validate:"omitempty,url"`
	Token     string `yaml:"token" env:"INFLUX_TOKEN"`
	Org       string `yaml:"org" env:"INFLUX_ORG"`
	Bucket    string `yaml:"bucket" env:"INFLUX_BUCKET"`
	VerifySSL bool   `yaml:"verify_ssl" env:"INFLUX_VERIFY_SSL"`
	TimeoutMS int    `yaml:"timeout_ms" env:"INFLUX_TIMEOUT" validate:"min=0"`
}

// Enabled reports whether a push target is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Timeout returns the HTTP client timeout.
func (c InfluxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ServerConfig controls the admin API server.
type ServerConfig struct {
	Port int `yaml:"port" env:"PORT" validate:"min=1,max=65535"`

	// InstanceIDPath persists the server's instance ID across restarts.
	// Empty means a fresh ID per start.
	InstanceIDPath string `yaml:"instance_id_path" env:"INSTANCE_ID_PATH"`

	APIKeys []APIKey `yaml:"api_keys" validate:"dive"`
}

// APIKey represents an API key configuration
type APIKey struct {
	Role   string `yaml:"role" validate:"required,oneof=admin readonly"`
	APIKey string `yaml:"api_key" validate:"required"`
	Name   string `yaml:"name,omitempty"`
}

// HostConfig describes one managed host container.
type HostConfig struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name"`
	Type string `yaml:"type" validate:"omitempty,oneof=LXC VM"`

	// Checkers lists the enabled checkers. A host with none attached still
	// appears in reports with metadata only.
	Checkers []string `yaml:"checkers" validate:"dive,oneof=docker"`
}

// HasChecker reports whether the named checker is attached to the host.
func (h HostConfig) HasChecker(name string) bool {
	for _, c := range h.Checkers {
		if c == name {
			return true
		}
	}
	return false
}

// Default returns the built-in configuration before file and environment
// are applied.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Checker: CheckerConfig{
			Architecture: "amd64",
			OS:           "linux",
		},
		Cache: CacheConfig{
			// Just under 24h so a once-daily run still refreshes.
			TTLSeconds: 82800,
		},
		Influx: InfluxConfig{
			TimeoutMS: 10000,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load reads the configuration file at path, applies environment overrides
// and defaults, and validates the result. An empty path skips the file and
// uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "PVEMON_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	for i := range c.Hosts {
		if c.Hosts[i].Type == "" {
			c.Hosts[i].Type = "LXC"
		}
		if c.Hosts[i].Name == "" {
			c.Hosts[i].Name = c.Hosts[i].ID
		}
	}
}

// Validate checks the configuration beyond struct tags: host IDs must be
// unique and API keys must not repeat.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		if seen[h.ID] {
			return fmt.Errorf("config validation failed: duplicate host id %q", h.ID)
		}
		seen[h.ID] = true
	}

	keys := make(map[string]bool, len(c.Server.APIKeys))
	for _, k := range c.Server.APIKeys {
		if keys[k.APIKey] {
			return fmt.Errorf("config validation failed: duplicate api key for role %q", k.Role)
		}
		keys[k.APIKey] = true
	}

	return nil
}

// FindAPIKeyByKey finds an API key by its key value
func FindAPIKeyByKey(apiKeys []APIKey, key string) (*APIKey, bool) {
	for _, ak := range apiKeys {
		if ak.APIKey == key {
			return &ak, true
		}
	}
	return nil, false
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
