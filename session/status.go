package session

import (
	"sync"

	"lingokit/core"
)

// StatusSnapshot is the user-facing projection of the error taxonomy.
type StatusSnapshot struct {
	Offline      bool `json:"offline"`
	UpstreamDown bool `json:"upstream_down"`
}

// SomethingWrong reports whether any flag is set.
func (s StatusSnapshot) SomethingWrong() bool {
	return s.Offline || s.UpstreamDown
}

// Status reduces classified errors into a small observable state. Any
// success anywhere in the system clears it; failures overwrite rather than
// accumulate. Malformed-response and local-io classifications raise no flag:
// they are transient and carry nothing the user could act on.
type Status struct {
	mu       sync.Mutex
	offline  bool
	upstream bool
	onChange func(StatusSnapshot)
	logger   *core.Logger
}

// NewStatus creates an empty (happy) status aggregator.
func NewStatus(logger *core.Logger) *Status {
	if logger == nil {
		logger = core.NewDevelopmentLogger()
	}
	return &Status{logger: logger.With(map[string]interface{}{"component": "status"})}
}

// OnChange registers a callback fired whenever the snapshot changes.
func (s *Status) OnChange(fn func(StatusSnapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetHappy clears all flags.
func (s *Status) SetHappy() {
	s.mu.Lock()
	changed := s.offline || s.upstream
	s.offline, s.upstream = false, false
	snapshot, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(snapshot)
	}
}

// SetFromError sets exactly one flag based on the error's classification.
func (s *Status) SetFromError(err error) {
	kind := core.KindOf(err)

	s.mu.Lock()
	before := s.snapshotLocked()
	switch kind {
	case core.KindOffline:
		s.offline = true
	case core.KindUpstreamUnavailable:
		s.upstream = true
	}
	after, fn := s.snapshotLocked(), s.onChange
	s.mu.Unlock()

	if kind != core.KindOffline && kind != core.KindUpstreamUnavailable {
		s.logger.Debug("error carries no status flag", "kind", kind.String())
	}
	if after != before && fn != nil {
		fn(after)
	}
}

// SomethingWrong reports whether any flag is set.
func (s *Status) SomethingWrong() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline || s.upstream
}

// Snapshot returns the current flags.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Status) snapshotLocked() StatusSnapshot {
	return StatusSnapshot{Offline: s.offline, UpstreamDown: s.upstream}
}
