// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package lifecycle implements the Communication Object state machine of
// §4.3: the {Created, Opening, Opened, Closing, Closed, Faulted} lifecycle
// shared by the transport connection, the secure channel and the session.
//
// The original pattern this generalizes (per §9's design note) tracks a
// "base was called" boolean per hook to catch a derived class that
// forgets to chain to its parent. A trait/interface-based rewrite doesn't
// need that: Open/Close/Abort/Fault below are non-overridable method
// bodies that call exactly the three hooks a caller supplies, in order,
// so there is no way to skip a step.
package lifecycle

import "sync"

// State is one of the six Communication Object states.
type State uint8

const (
	Created State = iota
	Opening
	Opened
	Closing
	Closed
	Faulted
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Opening:
		return "Opening"
	case Opened:
		return "Opened"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// Hooks are the three bracket points the specification calls out. nil
// hooks are treated as no-ops.
type Hooks struct {
	Opening func() error
	Open    func() error
	Opened  func() error

	Closing func() error
	Close   func() error
	Closed  func() error

	Abort func() error

	Faulted func(error)
}

// Machine is the shared lifecycle for one transport/channel/session
// instance. It is safe for concurrent use; the mutex is held only across
// the state write, never across hook invocation, so a hook may itself
// call back into the machine (e.g. Fault from inside Open).
type Machine struct {
	mu    sync.Mutex
	state State
	err   error // queued fault error, surfaced once by ThrowPending

	hooks Hooks

	observersMu sync.Mutex
	observers   []chan State
}

// New returns a Machine in the Created state.
func New(hooks Hooks) *Machine {
	return &Machine{state: Created, hooks: hooks}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	m.mu.Unlock()
	m.publish(s)
}

// Subscribe returns a channel that receives the states this machine
// enters from now on, most-recent value only (the channel holds one
// state; a slow subscriber that hasn't drained it has the undelivered
// value replaced by the newer one, never blocking the machine). Matches the §9 design note: one broadcast
// channel replaces the original's IObserver/IObservable event stream, with
// duplicate states dropped.
func (m *Machine) Subscribe() <-chan State {
	ch := make(chan State, 1)
	m.observersMu.Lock()
	m.observers = append(m.observers, ch)
	m.observersMu.Unlock()
	return ch
}

func (m *Machine) publish(s State) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	for _, ch := range m.observers {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Open runs Opening -> Open -> Opened from the Created state. Any error
// returned by a hook faults the machine and is returned to the caller.
// Calling Open from any state other than Created is a programming error
// reported as an error rather than a panic, since it can be triggered by a
// caller bug we still want to surface cleanly.
func (m *Machine) Open() error {
	if m.State() != Created {
		return errAlreadyOpened
	}
	m.setState(Opening)
	if err := m.runHook(m.hooks.Opening); err != nil {
		return m.Fault(err)
	}
	if err := m.runHook(m.hooks.Open); err != nil {
		return m.Fault(err)
	}
	m.setState(Opened)
	if err := m.runHook(m.hooks.Opened); err != nil {
		return m.Fault(err)
	}
	return nil
}

// Close runs Closing -> Close -> Closed from Opened. From Created,
// Opening or Faulted it falls back to Abort. From Closing or Closed it is
// a no-op.
func (m *Machine) Close() error {
	switch m.State() {
	case Closing, Closed:
		return nil
	case Created, Opening, Faulted:
		return m.Abort()
	}
	m.setState(Closing)
	if err := m.runHook(m.hooks.Closing); err != nil {
		return m.Fault(err)
	}
	if err := m.runHook(m.hooks.Close); err != nil {
		return m.Fault(err)
	}
	m.setState(Closed)
	return m.runHook(m.hooks.Closed)
}

// Abort forces the machine to Closing then Closed, running the Abort hook
// in between. It is idempotent.
func (m *Machine) Abort() error {
	if m.State() == Closed {
		return nil
	}
	m.setState(Closing)
	_ = m.runHook(m.hooks.Abort)
	m.setState(Closed)
	return nil
}

// Fault queues err (if non-nil and no error is already queued), moves the
// machine to Faulted, and runs the Faulted hook. It returns err so callers
// can write `return m.Fault(err)`.
func (m *Machine) Fault(err error) error {
	m.mu.Lock()
	if err != nil && m.err == nil {
		m.err = err
	}
	prev := m.state
	m.state = Faulted
	m.mu.Unlock()
	if prev != Faulted {
		m.publish(Faulted)
	}
	if m.hooks.Faulted != nil {
		m.hooks.Faulted(err)
	}
	return err
}

// ThrowPending returns the queued fault error exactly once; subsequent
// calls return nil. This is how a Faulted machine surfaces its cause to
// the next caller that tries to use it (§4.3 "the next user API call
// surfaces the queued exception via throw_pending").
func (m *Machine) ThrowPending() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.err
	m.err = nil
	return err
}

func (m *Machine) runHook(h func() error) error {
	if h == nil {
		return nil
	}
	return h()
}

var errAlreadyOpened = stateError("lifecycle: Open called outside the Created state")

type stateError string

func (e stateError) Error() string { return string(e) }
