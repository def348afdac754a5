package config

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"roost/pkg/logging"
)

// Load reads the agent configuration from path. A missing file yields the
// defaults anchored at installFolder; a malformed or invalid file is an
// error. The file may be YAML or JSON.
func Load(path, installFolder string) (AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file at %s, using defaults", path)
			return GetDefaultConfig(installFolder), nil
		}
		return AgentConfig{}, fmt.Errorf("reading config from %s: %w", path, err)
	}

	var config AgentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return AgentConfig{}, fmt.Errorf("parsing config from %s: %w", path, err)
	}

	applyDefaults(&config, installFolder)
	if err := Validate(config); err != nil {
		return AgentConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s (%d plugin definitions)", path, len(config.Plugins))
	return config, nil
}
