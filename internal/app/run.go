package app

import (
	"context"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"

	"roost/pkg/logging"
)

// Run drives the supervision core until the context is cancelled, then
// shuts everything down in order: no new triggers, all instances stopped,
// device registry flushed. It blocks for the whole agent lifetime.
func (a *Application) Run(ctx context.Context) error {
	s := a.services

	// Background loops get their own context so the final registry flush
	// and the StopAll below run after the outer context is cancelled.
	loopCtx, cancelLoops := context.WithCancel(context.Background())
	defer cancelLoops()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.DeviceRegistry.Run(loopCtx)
	}()
	go func() {
		defer wg.Done()
		s.Orchestrator.Run(loopCtx)
	}()

	s.Trigger.Bind()
	if s.Watcher != nil {
		if err := s.Watcher.Start(); err != nil {
			logging.Warn("Agent", "Config watcher unavailable, continuing without reload: %v", err)
		}
	}

	s.Orchestrator.StartEnabledDefinitions(ctx, a.baseContext())

	notifySystemd(daemon.SdNotifyReady)
	logging.Info("Agent", "roost agent running")

	<-ctx.Done()

	notifySystemd(daemon.SdNotifyStopping)
	logging.Info("Agent", "Shutting down")

	if s.Watcher != nil {
		s.Watcher.Stop()
	}
	s.Trigger.Unbind()
	s.Orchestrator.StopAll()

	cancelLoops()
	wg.Wait()

	logging.Info("Agent", "Shutdown complete")
	return nil
}

// notifySystemd sends an sd_notify state. Outside systemd this is a no-op.
func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Agent", "sd_notify failed: %v", err)
		return
	}
	if sent {
		logging.Debug("Agent", "sd_notify: %s", state)
	}
}
