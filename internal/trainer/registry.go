package trainer

import (
	"errors"
	"sync"
)

// ErrRunActive is returned when a session already has a running
// training or exploration loop. Competing loops would race on the same
// style-version sequence, so a second request is rejected rather than
// queued.
var ErrRunActive = errors.New("a run is already active for this session")

// Registry tracks which sessions have an active run and which have a
// pending stop request. It is injected rather than process-global so
// isolated test runs cannot interfere with each other.
//
// Cancellation is cooperative and polled: RequestStop sets a flag that
// the loop checks at its suspension points (start of each iteration,
// before each hypothesis test subject). An in-flight collaborator call
// finishes before the flag is observed.
type Registry struct {
	mu     sync.Mutex
	active map[string]bool
	stops  map[string]bool
}

// NewRegistry creates an empty run registry
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]bool),
		stops:  make(map[string]bool),
	}
}

// Begin marks the session as running. Fails with ErrRunActive if a run
// is already in flight for it.
func (r *Registry) Begin(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[sessionID] {
		return ErrRunActive
	}
	r.active[sessionID] = true
	delete(r.stops, sessionID)
	return nil
}

// End clears the session's running state and any unconsumed stop flag
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
	delete(r.stops, sessionID)
}

// RequestStop asks the session's run to stop at its next suspension
// point. Harmless when no run is active.
func (r *Registry) RequestStop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[sessionID] = true
}

// StopRequested reports whether a stop is pending for the session
func (r *Registry) StopRequested(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops[sessionID]
}

// IsActive reports whether the session currently has a run in flight
func (r *Registry) IsActive(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[sessionID]
}
