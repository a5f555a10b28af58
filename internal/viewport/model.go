package viewport

import "sync"

// Change describes one successful viewport mutation.
type Change struct {
	Op  string
	Old State
	New State
}

// Listener receives viewport changes synchronously, in registration order,
// after the model lock is released.
type Listener func(Change)

// Model holds the current viewport State.
type Model struct {
	mu        sync.Mutex
	state     State
	listeners []Listener
}

// NewModel creates a model showing the whole duration.
func NewModel(duration int) (*Model, error) {
	s, err := NewState(duration)
	if err != nil {
		return nil, err
	}
	return &Model{state: s}, nil
}

// State returns the current state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers l for every subsequent change.
func (m *Model) OnChange(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Model) Zoom(factor, anchor float64) error {
	return m.apply("zoom", func(s State) (State, error) { return s.Zoom(factor, anchor) })
}

func (m *Model) Pan(delta float64) error {
	return m.apply("pan", func(s State) (State, error) { return s.Pan(delta) })
}

func (m *Model) SetRange(f0, f1 float64) error {
	return m.apply("set_range", func(s State) (State, error) { return s.SetRange(f0, f1) })
}

func (m *Model) Reset() error {
	return m.apply("reset", func(s State) (State, error) { return s.Reset(), nil })
}

func (m *Model) SeekToFrame(frame int) error {
	return m.apply("seek", func(s State) (State, error) { return s.SeekToFrame(frame), nil })
}

func (m *Model) SetSelection(s0, s1 int) error {
	return m.apply("set_selection", func(s State) (State, error) { return s.SetSelection(s0, s1) })
}

func (m *Model) ClearSelection() error {
	return m.apply("clear_selection", func(s State) (State, error) { return s.ClearSelection(), nil })
}

// Restore replaces the state wholesale after validating it against the
// model's duration.
func (m *Model) Restore(next State) error {
	return m.apply("restore", func(s State) (State, error) {
		if next.Duration != s.Duration {
			return s, &RangeError{Op: "restore", Hi: float64(next.Duration), Reason: "duration mismatch"}
		}
		if err := next.Validate(); err != nil {
			return s, err
		}
		return next, nil
	})
}

func (m *Model) apply(op string, fn func(State) (State, error)) error {
	m.mu.Lock()
	old := m.state
	next, err := fn(old)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	listeners := m.listeners
	m.mu.Unlock()

	change := Change{Op: op, Old: old, New: next}
	for _, l := range listeners {
		l(change)
	}
	return nil
}
