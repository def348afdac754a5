package ports

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"roost/pkg/logging"
)

// ErrExhausted is returned by AllocateConsecutive when no run of free ports
// of the requested length exists in the configured range. Callers should
// treat it as a retryable resource-exhaustion condition, not a fatal error.
var ErrExhausted = errors.New("no consecutive port run available")

// probeFunc reports whether a port can currently be bound. Injectable so
// tests do not depend on the host's real port state.
type probeFunc func(port int) bool

// Allocator hands out runs of consecutive TCP ports from a configured
// contiguous range. The allocated set and the scan-and-commit sequence are
// serialized by a single mutex, so concurrent allocations never overlap.
type Allocator struct {
	mu        sync.Mutex
	start     int
	end       int // inclusive
	allocated map[int]bool
	probe     probeFunc
}

// NewAllocator creates an allocator over the inclusive range [start, end].
func NewAllocator(start, end int) (*Allocator, error) {
	if start <= 0 || end < start {
		return nil, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	return &Allocator{
		start:     start,
		end:       end,
		allocated: make(map[int]bool),
		probe:     bindProbe,
	}, nil
}

// AllocateConsecutive finds the first run of count ports that are neither
// marked allocated nor bound by another process (verified by a live bind
// probe on each candidate), marks the run allocated, and returns it.
// Returns ErrExhausted when no such run exists before the range end.
func (a *Allocator) AllocateConsecutive(count int) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid port count %d", count)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for candidate := a.start; candidate+count-1 <= a.end; candidate++ {
		run := a.tryRunLocked(candidate, count)
		if run == nil {
			continue
		}
		for _, p := range run {
			a.allocated[p] = true
		}
		logging.Debug("PortAllocator", "Allocated ports %v", run)
		return run, nil
	}

	logging.Warn("PortAllocator", "Range %d-%d exhausted for run of %d", a.start, a.end, count)
	return nil, ErrExhausted
}

// tryRunLocked checks whether count ports starting at first are all free.
// Must be called with the mutex held.
func (a *Allocator) tryRunLocked(first, count int) []int {
	run := make([]int, 0, count)
	for p := first; p < first+count; p++ {
		if a.allocated[p] || !a.probe(p) {
			return nil
		}
		run = append(run, p)
	}
	return run
}

// Release removes the given ports from the allocated set. Releasing a port
// that is not allocated is a no-op, so Release is safe to call twice.
func (a *Allocator) Release(ports []int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range ports {
		delete(a.allocated, p)
	}
}

// IsInUse reports whether a port is either marked allocated or fails a live
// bind probe (something else on the host is holding it).
func (a *Allocator) IsInUse(port int) bool {
	a.mu.Lock()
	allocated := a.allocated[port]
	a.mu.Unlock()

	if allocated {
		return true
	}
	return !a.probe(port)
}

// AllocatedCount returns the number of ports currently marked allocated.
func (a *Allocator) AllocatedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}

// bindProbe attempts to bind and immediately release a TCP listener on the
// port. A failed bind means something else holds the port.
func bindProbe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
