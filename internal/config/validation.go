package config

import (
	"fmt"

	"roost/internal/plugins"
)

// Validate checks an agent configuration after defaulting. The supervision
// core trusts its inputs, so every constraint it relies on is enforced
// here.
func Validate(c AgentConfig) error {
	if c.Ports.Start <= 0 || c.Ports.End < c.Ports.Start {
		return fmt.Errorf("port range %d-%d is not a valid range", c.Ports.Start, c.Ports.End)
	}
	if c.Ports.End > 65535 {
		return fmt.Errorf("port range end %d exceeds 65535", c.Ports.End)
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i, def := range c.Plugins {
		if err := validateDefinition(def); err != nil {
			return fmt.Errorf("plugin %d: %w", i, err)
		}
		if seen[def.ID] {
			return fmt.Errorf("plugin id %q is defined twice", def.ID)
		}
		seen[def.ID] = true
	}
	return nil
}

func validateDefinition(def plugins.Definition) error {
	if def.ID == "" {
		return fmt.Errorf("id is required")
	}
	if def.Executable == "" {
		return fmt.Errorf("%s: executable is required", def.ID)
	}

	switch def.Type {
	case plugins.TypeProcess, plugins.TypeScript:
	default:
		return fmt.Errorf("%s: unknown type %q", def.ID, def.Type)
	}

	switch def.RestartPolicy {
	case plugins.RestartNever, plugins.RestartOnFailure:
	default:
		return fmt.Errorf("%s: unknown restart policy %q", def.ID, def.RestartPolicy)
	}

	switch def.TriggerOn {
	case plugins.TriggerNone, plugins.TriggerOnDeviceConnect, plugins.TriggerOnDeviceDisconnect:
	default:
		return fmt.Errorf("%s: unknown trigger rule %q", def.ID, def.TriggerOn)
	}

	if def.HealthCheckIntervalSeconds < 0 || def.HealthCheckTimeoutSeconds < 0 {
		return fmt.Errorf("%s: health-check interval and timeout must not be negative", def.ID)
	}
	return nil
}
