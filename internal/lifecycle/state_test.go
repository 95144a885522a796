// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package lifecycle

import (
	"errors"
	"testing"
	"time"
)

func TestOpenRunsHooksInOrder(t *testing.T) {
	var got []string
	m := New(Hooks{
		Opening: func() error { got = append(got, "opening"); return nil },
		Open:    func() error { got = append(got, "open"); return nil },
		Opened:  func() error { got = append(got, "opened"); return nil },
	})
	if err := m.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := []string{"opening", "open", "opened"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if m.State() != Opened {
		t.Fatalf("state = %v, want Opened", m.State())
	}
}

func TestOpenFailureFaults(t *testing.T) {
	boom := errors.New("boom")
	m := New(Hooks{
		Open: func() error { return boom },
	})
	err := m.Open()
	if err != boom {
		t.Fatalf("Open err = %v, want %v", err, boom)
	}
	if m.State() != Faulted {
		t.Fatalf("state = %v, want Faulted", m.State())
	}
	if pending := m.ThrowPending(); pending != boom {
		t.Fatalf("ThrowPending = %v, want %v", pending, boom)
	}
	if pending := m.ThrowPending(); pending != nil {
		t.Fatalf("second ThrowPending = %v, want nil", pending)
	}
}

func TestCloseFromCreatedAborts(t *testing.T) {
	var aborted bool
	m := New(Hooks{Abort: func() error { aborted = true; return nil }})
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !aborted {
		t.Fatal("Close from Created did not run the Abort hook")
	}
	if m.State() != Closed {
		t.Fatalf("state = %v, want Closed", m.State())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var closes int
	m := New(Hooks{Close: func() error { closes++; return nil }})
	m.Open()
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if closes != 1 {
		t.Fatalf("Close hook ran %d times, want 1", closes)
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	var aborts int
	m := New(Hooks{Abort: func() error { aborts++; return nil }})
	m.Open()
	if err := m.Abort(); err != nil {
		t.Fatalf("first Abort: %v", err)
	}
	if err := m.Abort(); err != nil {
		t.Fatalf("second Abort: %v", err)
	}
	if aborts != 1 {
		t.Fatalf("Abort hook ran %d times, want 1", aborts)
	}
}

func TestSubscribeDeliversMonotonicStates(t *testing.T) {
	m := New(Hooks{})
	ch := m.Subscribe()

	// The channel holds only the latest state, so it is drained after each
	// transition rather than once after both.
	var seen []State
	timeout := time.After(time.Second)
	for _, step := range []func() error{m.Open, m.Close} {
		step()
		select {
		case s := <-ch:
			if len(seen) == 0 || seen[len(seen)-1] != s {
				seen = append(seen, s)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for states, saw %v", seen)
		}
	}
	if len(seen) != 2 || seen[0] != Opened || seen[1] != Closed {
		t.Fatalf("observed states = %v, want [Opened Closed]", seen)
	}
}

func TestFaultFromOpenedReachesClosedViaAbort(t *testing.T) {
	m := New(Hooks{})
	if err := m.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m.Fault(errors.New("network gone"))
	if m.State() != Faulted {
		t.Fatalf("state after Fault = %v, want Faulted", m.State())
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close after Fault: %v", err)
	}
	if m.State() != Closed {
		t.Fatalf("state = %v, want Closed", m.State())
	}
}
