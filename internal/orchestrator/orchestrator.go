package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"roost/internal/plugins"
	"roost/internal/template"
	"roost/internal/worker"
	"roost/pkg/logging"
)

const (
	// DefaultCheckInterval is the health-monitor tick when the config does
	// not set one. Per-definition intervals override it per instance.
	DefaultCheckInterval = 30 * time.Second
	// DefaultRestartBackoff is the window within which a second unhealthy
	// result for the same instance does not trigger another restart.
	DefaultRestartBackoff = 60 * time.Second
)

// Config holds the configuration for the orchestrator.
type Config struct {
	Registry       *plugins.Registry
	CheckInterval  time.Duration
	RestartBackoff time.Duration
}

// Orchestrator creates, starts, and stops plugin instances and runs the
// background health monitor that enforces restart policies.
type Orchestrator struct {
	registry       *plugins.Registry
	checkInterval  time.Duration
	restartBackoff time.Duration

	// newWorker constructs the variant for a definition; injectable so
	// lifecycle tests do not spawn real child processes.
	newWorker func(id string, def plugins.Definition) (plugins.Instance, error)
	now       func() time.Time

	mu            sync.Mutex
	startContexts map[string]*template.Context
	lastChecked   map[string]time.Time
	lastRestarted map[string]time.Time
	restartCounts map[string]int
}

// New creates an orchestrator over the given plugin registry.
func New(cfg Config) *Orchestrator {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = DefaultRestartBackoff
	}
	return &Orchestrator{
		registry:       cfg.Registry,
		checkInterval:  cfg.CheckInterval,
		restartBackoff: cfg.RestartBackoff,
		newWorker:      worker.New,
		now:            time.Now,
		startContexts:  make(map[string]*template.Context),
		lastChecked:    make(map[string]time.Time),
		lastRestarted:  make(map[string]time.Time),
		restartCounts:  make(map[string]int),
	}
}

// StartInstance starts a worker for the definition. The instance id is the
// definition id alone, or definitionId:deviceId when the context carries a
// deviceId variable. Starting an id that already has a live instance is an
// idempotent no-op returning true. An unknown definition or a launch
// failure is logged and returns false, never panics.
func (o *Orchestrator) StartInstance(ctx context.Context, definitionID string, tc *template.Context) bool {
	def, ok := o.registry.GetDefinition(definitionID)
	if !ok {
		logging.Warn("Orchestrator", "Cannot start unknown definition %s", definitionID)
		return false
	}

	deviceID, _ := tc.Lookup("deviceId")
	instanceID := plugins.InstanceID(definitionID, deviceID)

	if _, exists := o.registry.GetInstance(instanceID); exists {
		logging.Debug("Orchestrator", "Instance %s already exists", instanceID)
		return true
	}

	instance, err := o.newWorker(instanceID, def)
	if err != nil {
		logging.Error("Orchestrator", err, "Cannot construct worker for %s", instanceID)
		return false
	}
	instance.SetStateChangeCallback(o.onStateChange)

	registered, loaded := o.registry.RegisterInstance(instance)
	if loaded {
		// A concurrent start won the insert; its instance is the one that
		// counts, so this call succeeds without starting a second worker.
		logging.Debug("Orchestrator", "Lost start race for %s to instance in state %s", instanceID, registered.State())
		return true
	}

	o.mu.Lock()
	o.startContexts[instanceID] = tc
	o.mu.Unlock()

	if err := instance.Start(ctx, tc); err != nil {
		logging.Error("Orchestrator", err, "Failed to start instance %s", instanceID)
		o.removeInstance(instanceID)
		return false
	}

	logging.Info("Orchestrator", "Started instance %s", instanceID)
	return true
}

// StopInstance stops the instance and removes it from the registry.
// An unknown id is logged and returns false.
func (o *Orchestrator) StopInstance(instanceID string) bool {
	instance, ok := o.registry.GetInstance(instanceID)
	if !ok {
		logging.Warn("Orchestrator", "Cannot stop unknown instance %s", instanceID)
		return false
	}

	if err := instance.Stop(); err != nil {
		logging.Error("Orchestrator", err, "Error stopping instance %s", instanceID)
	}
	o.removeInstance(instanceID)

	logging.Info("Orchestrator", "Stopped instance %s", instanceID)
	return true
}

// StartEnabledDefinitions starts every enabled definition in registration
// order. One definition's failure is logged and does not abort the rest.
func (o *Orchestrator) StartEnabledDefinitions(ctx context.Context, tc *template.Context) {
	for _, def := range o.registry.Definitions() {
		if !def.Enabled {
			continue
		}
		if !o.StartInstance(ctx, def.ID, tc) {
			logging.Warn("Orchestrator", "Bulk start failed for definition %s, continuing", def.ID)
		}
	}
}

// StopAll stops every live instance concurrently. Used on shutdown.
func (o *Orchestrator) StopAll() {
	g := new(errgroup.Group)
	for _, instance := range o.registry.Instances() {
		id := instance.ID()
		g.Go(func() error {
			o.StopInstance(id)
			return nil
		})
	}
	g.Wait()
}

// RestartCount returns how many times the health monitor restarted the
// instance.
func (o *Orchestrator) RestartCount(instanceID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.restartCounts[instanceID]
}

// Run executes the health-monitor loop until the context is cancelled.
// Cancellation stops scheduling further ticks; an in-flight tick finishes.
func (o *Orchestrator) Run(ctx context.Context) {
	logging.Info("Orchestrator", "Health monitor running (tick %s, restart backoff %s)", o.checkInterval, o.restartBackoff)
	ticker := time.NewTicker(o.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Orchestrator", "Health monitor stopped")
			return
		case <-ticker.C:
			o.checkInstances(ctx)
		}
	}
}

// checkInstances performs one monitor tick. Per-instance work is
// independent: a failed check or restart on one instance never aborts the
// remaining instances in the same tick.
func (o *Orchestrator) checkInstances(ctx context.Context) {
	for _, instance := range o.registry.Instances() {
		if instance.State() != plugins.StateRunning {
			continue
		}
		o.checkInstance(ctx, instance)
	}
}

func (o *Orchestrator) checkInstance(ctx context.Context, instance plugins.Instance) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Orchestrator", nil, "Health check panic for %s: %v", instance.ID(), r)
		}
	}()

	id := instance.ID()
	def := instance.Definition()

	interval := def.HealthCheckInterval()
	if interval <= 0 {
		interval = o.checkInterval
	}

	now := o.now()
	o.mu.Lock()
	last, checked := o.lastChecked[id]
	if checked && now.Sub(last) < interval {
		o.mu.Unlock()
		return
	}
	o.lastChecked[id] = now
	o.mu.Unlock()

	if instance.CheckHealth(ctx) {
		return
	}
	logging.Warn("Orchestrator", "Instance %s is unhealthy", id)

	if def.RestartPolicy == plugins.RestartNever {
		logging.Debug("Orchestrator", "Restart policy forbids restarting %s", id)
		return
	}

	o.mu.Lock()
	lastRestart, restarted := o.lastRestarted[id]
	if restarted && now.Sub(lastRestart) < o.restartBackoff {
		o.mu.Unlock()
		logging.Debug("Orchestrator", "Restart of %s throttled, last restart %s ago", id, now.Sub(lastRestart))
		return
	}
	o.lastRestarted[id] = now
	tc := o.startContexts[id]
	o.mu.Unlock()

	o.restartInstance(ctx, instance, tc)
}

func (o *Orchestrator) restartInstance(ctx context.Context, instance plugins.Instance, tc *template.Context) {
	id := instance.ID()
	logging.Info("Orchestrator", "Restarting unhealthy instance %s", id)

	if err := instance.Stop(); err != nil {
		logging.Error("Orchestrator", err, "Error stopping %s during restart", id)
	}
	if err := instance.Start(ctx, tc); err != nil {
		logging.Error("Orchestrator", err, "Failed to restart instance %s", id)
		return
	}

	o.mu.Lock()
	o.restartCounts[id]++
	count := o.restartCounts[id]
	o.mu.Unlock()
	logging.Info("Orchestrator", "Restarted instance %s (restart #%d)", id, count)
}

func (o *Orchestrator) removeInstance(instanceID string) {
	o.registry.RemoveInstance(instanceID)
	o.mu.Lock()
	delete(o.startContexts, instanceID)
	delete(o.lastChecked, instanceID)
	delete(o.lastRestarted, instanceID)
	o.mu.Unlock()
}

func (o *Orchestrator) onStateChange(instanceID string, oldState, newState plugins.State) {
	logging.Debug("Orchestrator", "Instance %s state changed: %s -> %s", instanceID, oldState, newState)
}
