package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/derive/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "derive.json"

	// DefaultAddr is the default listen address of derive serve.
	DefaultAddr = "localhost:7070"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultMaxFlushIterations bounds effect re-runs per flush.
	DefaultMaxFlushIterations = 1000

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "derive"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "derive"
)

// Config represents the complete derive.json configuration.
type Config struct {
	// Diagnostics enables the self-reference guard.
	Diagnostics bool `json:"diagnostics,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty"`

	// MaxFlushIterations bounds effect re-runs per flush.
	MaxFlushIterations int `json:"maxFlushIterations,omitempty"`

	// Server contains settings for derive serve.
	Server ServerConfig `json:"server,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// Snapshot contains snapshot store settings.
	Snapshot SnapshotConfig `json:"snapshot,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `json:"addr,omitempty"`

	// WatchBuffer is the number of change messages buffered per
	// websocket client before it is disconnected.
	WatchBuffer int `json:"watchBuffer,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers the Prometheus observer and serves /metrics.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`

	// Subsystem is the metrics subsystem.
	Subsystem string `json:"subsystem,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled records a span per evaluation with the global tracer provider.
	Enabled bool `json:"enabled,omitempty"`

	// TracerName is the tracer name.
	TracerName string `json:"tracerName,omitempty"`
}

// SnapshotConfig contains snapshot store settings.
type SnapshotConfig struct {
	// URL selects the store: file://dir, s3://bucket/prefix or
	// redis://host:port/db. Empty disables snapshots.
	URL string `json:"url,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		LogLevel:           DefaultLogLevel,
		MaxFlushIterations: DefaultMaxFlushIterations,
		Server: ServerConfig{
			Addr:        DefaultAddr,
			WatchBuffer: 64,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for derive.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	cfg.resolvePaths()
	return cfg, nil
}

// Parse decodes configuration from JSON and fills in defaults.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error())
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CodeConfigInvalid, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxFlushIterations == 0 {
		c.MaxFlushIterations = DefaultMaxFlushIterations
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WatchBuffer == 0 {
		c.Server.WatchBuffer = 64
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// resolvePaths makes a relative file:// snapshot URL relative to the
// config file.
func (c *Config) resolvePaths() {
	dir, ok := strings.CutPrefix(c.Snapshot.URL, "file://")
	if !ok || filepath.IsAbs(dir) {
		return
	}
	c.Snapshot.URL = "file://" + filepath.Join(c.Dir(), dir)
}

// Validate checks if the configuration is valid. All problems are reported
// together.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if c.MaxFlushIterations < 0 {
		result = multierror.Append(result, errors.New(errors.CodeConfigInvalid).
			WithDetail("maxFlushIterations must not be negative"))
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		result = multierror.Append(result, errors.New(errors.CodeConfigInvalid).
			WithDetail(fmt.Sprintf("server.addr %q is not host:port", c.Server.Addr)).
			Wrap(err))
	}
	if c.Server.WatchBuffer < 0 {
		result = multierror.Append(result, errors.New(errors.CodeConfigInvalid).
			WithDetail("server.watchBuffer must not be negative"))
	}
	if c.Snapshot.URL != "" {
		if u, err := url.Parse(c.Snapshot.URL); err != nil || u.Scheme == "" {
			result = multierror.Append(result, errors.New(errors.CodeConfigInvalid).
				WithDetail(fmt.Sprintf("snapshot.url %q is not a URL", c.Snapshot.URL)))
		}
	}

	return result.ErrorOrNil()
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.New(errors.CodeConfigInvalid).
			WithDetail(fmt.Sprintf("logLevel %q is not one of debug, info, warn, error", name))
	}
	return level, nil
}

// Level returns the configured log level, or Info if it is invalid.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Exists checks if a derive.json exists in the specified directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindRoot walks up directories to find the one containing derive.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest derive.json above the working
// directory, or returns the defaults if there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindRoot(wd)
	if err != nil {
		return New(), nil
	}
	return Load(root)
}
