// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/webrtc-relay/config.toml",
	"configs/config.toml",
}

// Routes owned by the relay itself; metrics.path must not shadow them.
const (
	HealthRoute = "/health"
	StatusRoute = "/relay/status"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	BackendHost string           `kong:"help='Backend host (overrides config).',env='BACKEND_HOST'"`
	BackendPort int              `kong:"help='Backend port (overrides config).',env='PYTHON_SERVER_PORT'"`
	StaticRoot  string           `kong:"help='Directory of frontend assets (overrides config).',env='STATIC_ROOT'"`
	LogLevel    string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Version     kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Backend BackendConfig `toml:"backend"`
	Static  StaticConfig  `toml:"static"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds the public listener settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (3001)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// BackendConfig describes the single service the relay forwards to.
type BackendConfig struct {
	Scheme               string `toml:"scheme"`
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	ForwardPath          string `toml:"forward_path"`
	HealthPath           string `toml:"health_path"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	HealthTimeoutSeconds int    `toml:"health_timeout_seconds"`
	IdleConnections      int    `toml:"idle_connections"`
}

// StaticConfig points at the prebuilt frontend.
type StaticConfig struct {
	Root string `toml:"root"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the optional TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/webrtc-relay/config.toml then configs/config.toml, and falls back to
// built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.BackendHost != "" {
		c.Backend.Host = cli.BackendHost
	}
	if cli.BackendPort != 0 {
		c.Backend.Port = cli.BackendPort
	}
	if cli.StaticRoot != "" {
		c.Static.Root = cli.StaticRoot
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	portRules := []validation.Rule{validation.Min(0), validation.Max(65535)}

	errs := validation.Errors{
		"server.port":           validation.Validate(c.Server.Port, portRules...),
		"server.body_max_bytes": validation.Validate(c.Server.BodyMaxBytes, validation.Min(int64(0))),

		"backend.scheme":                 validation.Validate(c.Backend.Scheme, validation.In("http", "https")),
		"backend.host":                   validation.Validate(c.Backend.Host, is.Host),
		"backend.port":                   validation.Validate(c.Backend.Port, portRules...),
		"backend.forward_path":           validation.Validate(c.Backend.ForwardPath, validation.By(absolutePath), validation.By(belowRoot)),
		"backend.health_path":            validation.Validate(c.Backend.HealthPath, validation.By(absolutePath)),
		"backend.timeout_seconds":        validation.Validate(c.Backend.TimeoutSeconds, validation.Min(0)),
		"backend.health_timeout_seconds": validation.Validate(c.Backend.HealthTimeoutSeconds, validation.Min(0)),
		"backend.idle_connections":       validation.Validate(c.Backend.IdleConnections, validation.Min(0)),

		"log.level":  validation.Validate(strings.ToLower(c.Log.Level), validation.In("debug", "info", "warn", "error")),
		"log.format": validation.Validate(strings.ToLower(c.Log.Format), validation.In("json", "text")),
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		errs["server.rate_limit.requests_per_second"] = fmt.Errorf(
			"must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		errs["metrics.path"] = validation.Validate(c.Metrics.Path,
			validation.By(absolutePath),
			validation.By(c.notReserved),
		)
	}

	return errs.Filter()
}

// absolutePath requires non-empty path values to start with '/'.
func absolutePath(value interface{}) error {
	p, _ := value.(string)
	if p != "" && p[0] != '/' {
		return fmt.Errorf("must start with '/'; got %q", p)
	}
	return nil
}

// belowRoot rejects a forward path that would claim every route.
func belowRoot(value interface{}) error {
	p, _ := value.(string)
	if p != "" && NormalizeForwardPath(p) == "" {
		return fmt.Errorf("must name a path below '/'; got %q", p)
	}
	return nil
}

// NormalizeForwardPath drops trailing slashes so "/offer/" and "/offer"
// name the same relayed prefix.
func NormalizeForwardPath(p string) string {
	return strings.TrimRight(p, "/")
}

// notReserved rejects paths that would shadow a relay-owned route.
func (c *Config) notReserved(value interface{}) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	forward := NormalizeForwardPath(c.Backend.ForwardPath)
	if forward == "" {
		forward = "/offer"
	}
	for _, reserved := range []string{forward, HealthRoute, StatusRoute} {
		if p == reserved || strings.HasPrefix(p, reserved+"/") {
			return fmt.Errorf("conflicts with reserved route %q", reserved)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Backend.Scheme == "" {
		c.Backend.Scheme = "http"
	}
	if c.Backend.Host == "" {
		c.Backend.Host = "localhost"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8080
	}
	if c.Backend.ForwardPath == "" {
		c.Backend.ForwardPath = "/offer"
	}
	c.Backend.ForwardPath = NormalizeForwardPath(c.Backend.ForwardPath)
	if c.Backend.HealthPath == "" {
		c.Backend.HealthPath = "/health"
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 120
	}
	if c.Backend.HealthTimeoutSeconds == 0 {
		c.Backend.HealthTimeoutSeconds = 5
	}
	if c.Backend.IdleConnections == 0 {
		c.Backend.IdleConnections = 100
	}
	if c.Static.Root == "" {
		c.Static.Root = "public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the backend origin, e.g. http://localhost:8080.
func (c *BackendConfig) BaseURL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

// FilePath returns the config file in use, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}
