// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/j-veylop/amplitude-export/internal/amplitude"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// Environment variables holding the project credentials.
const (
	EnvAPIKey    = "AMPLITUDE_PROJECT_API_KEY"
	EnvSecretKey = "AMPLITUDE_PROJECT_SECRET_KEY"
)

// envPrefix scopes tool settings such as AMPLITUDE_EXPORT_ENDPOINT.
const envPrefix = "AMPLITUDE_EXPORT_"

// Default values
const (
	DefaultEndpoint = amplitude.DefaultEndpoint
	DefaultOutput   = "amplitude-export.zip"
	DefaultDatabase = "amplitude_data.sqlite"
)

var (
	// ErrMissingCredentials is returned when no usable key pair could be resolved.
	// It is the client's sentinel so errors.Is matches whichever layer failed.
	ErrMissingCredentials = amplitude.ErrMissingCredentials
	// ErrProjectNotFound is returned when a named project is not configured.
	ErrProjectNotFound = errors.New("project not found in configuration")
)

// Config holds the application configuration.
type Config struct {
	Projects   map[string]models.Credentials
	ConfigFile string
	EnvFile    string
	Endpoint   string
	Output     string
	Database   string
	Timeout    time.Duration
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigPath is an explicit project file; it must exist when set.
	ConfigPath string
	// SkipDotEnv disables .env discovery.
	SkipDotEnv bool
}

// fileConfig mirrors the project file layout.
type fileConfig struct {
	Projects map[string]models.Credentials `koanf:"projects"`
	Endpoint string                        `koanf:"endpoint"`
	Output   string                        `koanf:"output"`
	Database string                        `koanf:"database"`
	Timeout  string                        `koanf:"timeout"`
}

// Load reads configuration from .env files, an optional project file and
// environment variables, in increasing order of priority.
func Load(opts Options) (*Config, error) {
	cfg := &Config{}

	if !opts.SkipDotEnv {
		// Try loading .env from multiple locations
		for _, path := range getEnvPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := godotenv.Load(path); err != nil {
					logger.Warn("failed to load env file", "path", path, "error", err)
					continue
				}
				cfg.EnvFile = path
				break
			}
		}
	}

	k := koanf.New(".")

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = getEnvString(envPrefix+"CONFIG", "")
	}
	if configPath != "" {
		if err := loadConfigFromPath(k, configPath); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		cfg.ConfigFile = configPath
	} else {
		for _, path := range getConfigPaths() {
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := loadConfigFromPath(k, path); err != nil {
				logger.Warn("error reading config file", "file", path, "error", err)
				continue
			}
			cfg.ConfigFile = path
			break
		}
	}

	if err := loadEnvironmentVariables(k); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var fc fileConfig
	if err := k.Unmarshal("", &fc); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Projects = fc.Projects
	if cfg.Projects == nil {
		cfg.Projects = make(map[string]models.Credentials)
	}
	cfg.Endpoint = orDefault(fc.Endpoint, DefaultEndpoint)
	cfg.Output = orDefault(fc.Output, DefaultOutput)
	cfg.Database = orDefault(fc.Database, DefaultDatabase)
	cfg.Timeout = parseDuration(fc.Timeout, 0)

	if cfg.ConfigFile != "" {
		logger.Debug("using config", "file", cfg.ConfigFile, "projects", len(cfg.Projects))
	}

	return cfg, nil
}

// ProjectNames returns the configured project names in sorted order.
func (c *Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Projects))
	for name := range c.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Picker chooses one project name out of several.
type Picker func(names []string) (string, error)

// Credentials resolves the key pair used for an export.
//
// A named project always comes from the project file. Otherwise the
// AMPLITUDE_PROJECT_* environment variables win; if neither is set a single
// configured project is used directly and several are handed to pick.
// It never touches the network.
func (c *Config) Credentials(project string, pick Picker) (models.Credentials, string, error) {
	if project != "" {
		creds, ok := c.Projects[project]
		if !ok {
			return models.Credentials{}, "", fmt.Errorf("%w: %q", ErrProjectNotFound, project)
		}
		if !creds.Complete() {
			return models.Credentials{}, "", fmt.Errorf("%w: project %q needs api_key and secret_key", ErrMissingCredentials, project)
		}
		return creds, project, nil
	}

	apiKey := getEnvString(EnvAPIKey, "")
	secretKey := getEnvString(EnvSecretKey, "")
	if apiKey != "" || secretKey != "" {
		var missing []string
		if apiKey == "" {
			missing = append(missing, EnvAPIKey)
		}
		if secretKey == "" {
			missing = append(missing, EnvSecretKey)
		}
		if len(missing) > 0 {
			return models.Credentials{}, "", fmt.Errorf("%w: %s not set", ErrMissingCredentials, strings.Join(missing, " and "))
		}
		return models.Credentials{APIKey: apiKey, SecretKey: secretKey}, "", nil
	}

	names := c.ProjectNames()
	switch {
	case len(names) == 1:
		return c.Credentials(names[0], nil)
	case len(names) > 1 && pick != nil:
		name, err := pick(names)
		if err != nil {
			return models.Credentials{}, "", err
		}
		return c.Credentials(name, nil)
	case len(names) > 1:
		return models.Credentials{}, "", fmt.Errorf("%w: %d projects configured, choose one with --project", ErrMissingCredentials, len(names))
	}

	return models.Credentials{}, "", fmt.Errorf("%w: %s and %s not set", ErrMissingCredentials, EnvAPIKey, EnvSecretKey)
}

// loadConfigFromPath loads a JSON or YAML project file into k.
func loadConfigFromPath(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch filepath.Ext(path) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported config format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// loadEnvironmentVariables maps AMPLITUDE_EXPORT_* variables onto config keys.
// AMPLITUDE_EXPORT_ENDPOINT -> endpoint
func loadEnvironmentVariables(k *koanf.Koanf) error {
	return k.Load(env.ProviderWithValue(envPrefix, "", func(key, value string) (string, interface{}) {
		configKey := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if configKey == "config" || value == "" {
			return "", nil
		}
		return configKey, value
	}), nil)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	cwd, cwdErr := os.Getwd()
	if cwdErr == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "amplitude-export", ".env"))
	}

	// Parent directories (useful for development)
	if cwdErr == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getConfigPaths returns the project file locations in search order.
func getConfigPaths() []string {
	names := []string{"amplitude.json", "amplitude.yaml", "amplitude.yml"}

	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		for _, dir := range []string{cwd, filepath.Join(cwd, "config")} {
			for _, name := range names {
				paths = append(paths, filepath.Join(dir, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "amplitude-export")
		for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	return paths
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

// parseDuration accepts values like "30s", "1m", "500ms" or a bare number of seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	// Try parsing as seconds if no unit specified
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	logger.Warn("ignoring invalid duration", "value", value)
	return defaultValue
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
