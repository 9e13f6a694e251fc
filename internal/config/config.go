package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort   = 5000
	DefaultDBPath = "database/fibertrack.db"
	DefaultEnv    = "production"
)

type HTTPConfig struct {
	Port          int    `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Real-IP and
	// X-Forwarded-For headers name the client. Empty means the headers are
	// ignored.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig enables API keys for mutating requests. Each entry is a
// bcrypt hash produced by `fiberqc hash-key`. Empty means open access.
type AuthConfig struct {
	APIKeyHashes []string `yaml:"api_key_hashes"`
}

type RateLimitConfig struct {
	// PerMinute caps write requests per client IP. 0 disables the limiter.
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Env       string          `yaml:"env"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Env:      DefaultEnv,
		HTTP:     HTTPConfig{Port: DefaultPort, AllowedOrigin: "*"},
		Database: DatabaseConfig{Path: DefaultDBPath},
	}
}

// Load reads an optional YAML file on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := envInt("PORT"); v != nil {
		c.HTTP.Port = *v
	}
	if v := strings.TrimSpace(os.Getenv("FIBERQC_DB")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("FIBERQC_ENV")); v != "" {
		c.Env = v
	}
	if v := envInt("FIBERQC_RATE_LIMIT"); v != nil {
		c.RateLimit.PerMinute = *v
	}
}

// Validate fills zero values with defaults and rejects impossible settings.
func (c *Config) Validate() error {
	if c.Env == "" {
		c.Env = DefaultEnv
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if c.HTTP.AllowedOrigin == "" {
		c.HTTP.AllowedOrigin = "*"
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDBPath
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate_limit.per_minute must be >= 0")
	}
	for _, p := range c.HTTP.TrustedProxies {
		if _, err := parsePrefix(p); err != nil {
			return fmt.Errorf("http.trusted_proxies: %w", err)
		}
	}
	return nil
}

// Development reports whether error details may be exposed to clients.
func (c *Config) Development() bool {
	e := strings.ToLower(c.Env)
	return e == "development" || e == "dev"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

// TrustedProxies returns the parsed http.trusted_proxies. Entries that do
// not parse are skipped; Validate rejects them first.
func (c *Config) TrustedProxies() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.HTTP.TrustedProxies))
	for _, p := range c.HTTP.TrustedProxies {
		if prefix, err := parsePrefix(p); err == nil {
			out = append(out, prefix)
		}
	}
	return out
}

// parsePrefix accepts a CIDR or a single address.
func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return netip.ParsePrefix(s)
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func envInt(name string) *int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &i
}
