package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"roost/internal/plugins"
	"roost/internal/template"
	"roost/pkg/logging"
)

const (
	// defaultHealthCheckTimeout bounds a health probe when the definition
	// does not configure its own timeout.
	defaultHealthCheckTimeout = 10 * time.Second
	// stopWait bounds how long Stop waits for the child to exit after the
	// kill signal.
	stopWait = 5 * time.Second
)

// base carries the state machine and child-process plumbing shared by the
// process and script variants. Each worker wraps exactly one external
// child process.
type base struct {
	id  string
	def plugins.Definition

	mu       sync.Mutex
	state    plugins.State
	cb       plugins.StateChangeCallback
	cmd      *exec.Cmd
	exited   chan struct{} // closed when the child exits
	launchTC *template.Context
}

func newBase(id string, def plugins.Definition) base {
	return base{
		id:    id,
		def:   def.Clone(),
		state: plugins.StateDisabled,
	}
}

func (b *base) ID() string { return b.id }

func (b *base) Definition() plugins.Definition { return b.def.Clone() }

func (b *base) State() plugins.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) SetStateChangeCallback(cb plugins.StateChangeCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
}

// updateState transitions the state and fires the callback outside the
// lock to avoid deadlocks.
func (b *base) updateState(newState plugins.State) {
	b.mu.Lock()
	oldState := b.state
	b.state = newState
	cb := b.cb
	b.mu.Unlock()

	if cb != nil && oldState != newState {
		cb(b.id, oldState, newState)
	}
}

// launch expands the command line through the template context and starts
// the child process, wiring its stdout/stderr into the logging sink. On
// failure the state is set to Error and the error returned, never raised.
func (b *base) launch(ctx context.Context, tc *template.Context, executable string, args []string) error {
	b.mu.Lock()
	if b.cmd != nil && b.processAliveLocked() {
		b.mu.Unlock()
		logging.Debug(b.logContext(), "Already running, ignoring start")
		return nil
	}
	b.mu.Unlock()

	executable = template.Expand(executable, tc)
	args = template.ExpandList(args, tc)

	cmd := exec.Command(executable, args...)
	cmd.Dir = template.Expand(b.def.WorkingDirectory, tc)
	cmd.Env = b.buildEnv(tc)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		b.updateState(plugins.StateError)
		return fmt.Errorf("failed to open stdout pipe for %s: %w", b.id, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		b.updateState(plugins.StateError)
		return fmt.Errorf("failed to open stderr pipe for %s: %w", b.id, err)
	}

	if err := cmd.Start(); err != nil {
		b.updateState(plugins.StateError)
		logging.Error(b.logContext(), err, "Launch failed: %s", executable)
		return fmt.Errorf("failed to launch %s: %w", executable, err)
	}

	exited := make(chan struct{})
	b.mu.Lock()
	b.cmd = cmd
	b.exited = exited
	b.launchTC = tc
	b.mu.Unlock()

	go b.forwardOutput("stdout", stdout)
	go b.forwardOutput("stderr", stderr)
	go func() {
		err := cmd.Wait()
		close(exited)
		if err != nil {
			logging.Debug(b.logContext(), "Child exited: %v", err)
		}
	}()

	b.updateState(plugins.StateRunning)
	logging.Info(b.logContext(), "Launched %s (pid %d)", executable, cmd.Process.Pid)
	return nil
}

// buildEnv merges the process environment with the definition's expanded
// environment variables.
func (b *base) buildEnv(tc *template.Context) []string {
	env := os.Environ()
	for k, v := range template.ExpandMap(b.def.EnvironmentVariables, tc) {
		env = append(env, k+"="+v)
	}
	return env
}

func (b *base) forwardOutput(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if stream == "stderr" {
			logging.Warn(b.logContext(), "%s", scanner.Text())
		} else {
			logging.Debug(b.logContext(), "%s", scanner.Text())
		}
	}
}

// Stop forcibly terminates the child process tree and waits a bounded time
// for it to exit. Termination errors are logged, never returned as
// failures; the state always ends up Stopped.
func (b *base) Stop() error {
	b.mu.Lock()
	cmd := b.cmd
	exited := b.exited
	b.cmd = nil
	b.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := killProcessTree(cmd); err != nil {
			logging.Warn(b.logContext(), "Kill failed: %v", err)
		}
		if exited != nil {
			select {
			case <-exited:
			case <-time.After(stopWait):
				logging.Warn(b.logContext(), "Child did not exit within %s", stopWait)
			}
		}
	}

	b.updateState(plugins.StateStopped)
	logging.Info(b.logContext(), "Stopped")
	return nil
}

// CheckHealth probes the worker. With a configured health-check command it
// runs the command under a bounded timeout and maps exit code 0 to
// healthy; any other outcome, including a timeout that kills the probe, is
// unhealthy. Without a configured command, health approximates to "child
// process still running".
func (b *base) CheckHealth(ctx context.Context) bool {
	if b.def.HealthCheckCommand == "" {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.processAliveLocked()
	}

	timeout := b.def.HealthCheckTimeout()
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.mu.Lock()
	tc := b.launchTC
	b.mu.Unlock()

	command := template.Expand(b.def.HealthCheckCommand, tc)
	args := template.ExpandList(b.def.HealthCheckArguments, tc)

	cmd := exec.CommandContext(probeCtx, command, args...)
	if err := cmd.Run(); err != nil {
		logging.Debug(b.logContext(), "Health probe failed: %v", err)
		return false
	}
	return true
}

// processAliveLocked reports whether the child is started and has not
// exited. Must be called with the mutex held.
func (b *base) processAliveLocked() bool {
	if b.cmd == nil || b.cmd.Process == nil || b.exited == nil {
		return false
	}
	select {
	case <-b.exited:
		return false
	default:
		return true
	}
}

// Pid returns the child process id, or 0 when not running.
func (b *base) Pid() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

func (b *base) logContext() string {
	return "Worker-" + b.id
}
