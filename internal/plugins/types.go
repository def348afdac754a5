package plugins

import (
	"context"
	"strings"
	"time"

	"roost/internal/template"
)

// Type tags the worker variant a definition launches.
type Type string

const (
	// TypeProcess launches the executable directly.
	TypeProcess Type = "process"
	// TypeScript launches the target through an interpreter resolved from
	// the runtime hint or the file extension.
	TypeScript Type = "script"
)

// RestartPolicy governs whether an unhealthy instance is restarted by the
// health monitor.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "Never"
	RestartOnFailure RestartPolicy = "OnFailure"
)

// TriggerRule is the device-connectivity condition under which a definition
// is auto-started.
type TriggerRule string

const (
	TriggerNone               TriggerRule = ""
	TriggerOnDeviceConnect    TriggerRule = "device-connected"
	TriggerOnDeviceDisconnect TriggerRule = "device-disconnected"
)

// State is the lifecycle state of a plugin instance. Disabled is the
// initial value before any start attempt.
type State string

const (
	StateDisabled State = "Disabled"
	StateRunning  State = "Running"
	StateStopped  State = "Stopped"
	StateError    State = "Error"
)

// StateChangeCallback is invoked when an instance's state changes.
type StateChangeCallback func(instanceID string, oldState, newState State)

// Definition is the configuration blueprint for a worker. Definitions are
// immutable once registered except by explicit re-registration.
type Definition struct {
	ID                         string            `json:"id"`
	Type                       Type              `json:"type"`
	Executable                 string            `json:"executable"`
	Arguments                  []string          `json:"arguments,omitempty"`
	WorkingDirectory           string            `json:"workingDirectory,omitempty"`
	EnvironmentVariables       map[string]string `json:"environmentVariables,omitempty"`
	HealthCheckCommand         string            `json:"healthCheckCommand,omitempty"`
	HealthCheckArguments       []string          `json:"healthCheckArguments,omitempty"`
	HealthCheckIntervalSeconds int               `json:"healthCheckIntervalSeconds,omitempty"`
	HealthCheckTimeoutSeconds  int               `json:"healthCheckTimeoutSeconds,omitempty"`
	Runtime                    string            `json:"runtime,omitempty"`
	RestartPolicy              RestartPolicy     `json:"restartPolicy"`
	Enabled                    bool              `json:"enabled"`
	TriggerOn                  TriggerRule       `json:"triggerOn,omitempty"`
	StopOnDisconnect           bool              `json:"stopOnDisconnect,omitempty"`
}

// HealthCheckInterval returns the per-definition probe interval, or zero
// when unset (the health monitor then falls back to its global interval).
func (d Definition) HealthCheckInterval() time.Duration {
	return time.Duration(d.HealthCheckIntervalSeconds) * time.Second
}

// HealthCheckTimeout returns the per-definition probe timeout, or zero
// when unset.
func (d Definition) HealthCheckTimeout() time.Duration {
	return time.Duration(d.HealthCheckTimeoutSeconds) * time.Second
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	c := d
	if d.Arguments != nil {
		c.Arguments = append([]string(nil), d.Arguments...)
	}
	if d.HealthCheckArguments != nil {
		c.HealthCheckArguments = append([]string(nil), d.HealthCheckArguments...)
	}
	if d.EnvironmentVariables != nil {
		c.EnvironmentVariables = make(map[string]string, len(d.EnvironmentVariables))
		for k, v := range d.EnvironmentVariables {
			c.EnvironmentVariables[k] = v
		}
	}
	return c
}

// Instance is a live worker bound to a definition. The closed set of
// variants (process, script) all satisfy this contract; the orchestrator
// picks the variant from the definition's type tag at construction time.
type Instance interface {
	// ID is the instance key: the definition id alone for singleton
	// workers, or definitionId:deviceId for per-device workers.
	ID() string
	Type() Type
	State() State
	// Definition returns a snapshot of the owning definition, for
	// introspection.
	Definition() Definition

	// Start launches the worker, expanding launch parameters through the
	// supplied context. A launch failure sets state Error and is returned,
	// never panics.
	Start(ctx context.Context, tc *template.Context) error
	// Stop terminates the worker's child process tree with a bounded wait.
	Stop() error
	// CheckHealth probes the worker. True means healthy.
	CheckHealth(ctx context.Context) bool

	SetStateChangeCallback(cb StateChangeCallback)
}

// InstanceID computes the instance key for a definition and an optional
// device id.
func InstanceID(definitionID, deviceID string) string {
	if deviceID == "" {
		return definitionID
	}
	return definitionID + ":" + deviceID
}

// DefinitionIDOf extracts the definition id from an instance id.
func DefinitionIDOf(instanceID string) string {
	if i := strings.IndexByte(instanceID, ':'); i >= 0 {
		return instanceID[:i]
	}
	return instanceID
}
