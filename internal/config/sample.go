package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
)

// WriteSample writes a project file template to path.
// The format follows the extension; existing files are kept unless force is set.
func WriteSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	var parser koanf.Parser
	switch filepath.Ext(path) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported config format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}

	sample := map[string]interface{}{
		"endpoint": DefaultEndpoint,
		"output":   DefaultOutput,
		"database": DefaultDatabase,
		"projects": map[string]interface{}{
			"my_project": map[string]interface{}{
				"api_key":    "your_amplitude_project_api_key_here",
				"secret_key": "your_amplitude_project_secret_key_here",
			},
		},
	}

	data, err := parser.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode sample config: %w", err)
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Credentials end up in this file, keep it private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
