package overlay

import "sync/atomic"

// Switch is the shared enable toggle. The zero value is disabled.
type Switch struct {
	on atomic.Bool
}

// NewSwitch returns a switch in the given state.
func NewSwitch(enabled bool) *Switch {
	s := &Switch{}
	s.on.Store(enabled)
	return s
}

func (s *Switch) Enabled() bool {
	return s.on.Load()
}

func (s *Switch) Set(enabled bool) {
	s.on.Store(enabled)
}

// Toggle flips the switch and returns the new state.
func (s *Switch) Toggle() bool {
	for {
		cur := s.on.Load()
		if s.on.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}
