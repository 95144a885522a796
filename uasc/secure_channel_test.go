// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"sync"
	"testing"

	"github.com/opcgo/opcua/ua"
)

// newBareChannel returns a SecureChannel with just enough state to drive
// the dispatcher (handle allocation, pending map, dispatch) directly,
// without a real transport connection underneath.
func newBareChannel() *SecureChannel {
	return &SecureChannel{pending: make(map[uint32]*pendingRequest)}
}

// TestHandleAllocationIsUniqueAndNonZero is §8 property 1.
func TestHandleAllocationIsUniqueAndNonZero(t *testing.T) {
	s := newBareChannel()

	const n = 2000
	seen := make(map[uint32]bool, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := s.nextRequestHandle()
			mu.Lock()
			defer mu.Unlock()
			if h == 0 {
				t.Error("allocated handle 0")
			}
			if seen[h] {
				t.Errorf("handle %d allocated twice", h)
			}
			seen[h] = true
		}()
	}
	wg.Wait()
}

// TestHandleAllocationSkipsZeroOnWrap checks the wraparound case (§9):
// when the counter is at the max uint32, the next allocation must skip 0.
func TestHandleAllocationSkipsZeroOnWrap(t *testing.T) {
	s := newBareChannel()
	s.handleCounter = ^uint32(0) // one increment away from wrapping to 0
	h := s.nextRequestHandle()
	if h == 0 {
		t.Fatal("nextRequestHandle returned 0 across the wraparound")
	}
}

// TestDispatchCorrelatesByHandle is §8 property 3: a response with handle h
// settles exactly the operation registered under h, leaving others
// untouched.
func TestDispatchCorrelatesByHandle(t *testing.T) {
	s := newBareChannel()

	var gotA, gotB *ua.ReadResponse
	prA := &pendingRequest{done: make(chan struct{}), handler: func(v interface{}) error {
		gotA = v.(*ua.ReadResponse)
		return nil
	}}
	prB := &pendingRequest{done: make(chan struct{}), handler: func(v interface{}) error {
		gotB = v.(*ua.ReadResponse)
		return nil
	}}
	s.pending[10] = prA
	s.pending[20] = prB

	respA := &ua.ReadResponse{ResponseHeader: &ua.ResponseHeader{RequestHandle: 10, ServiceResult: ua.StatusOK}}
	s.dispatch(respA)

	select {
	case <-prA.done:
	default:
		t.Fatal("operation A was not settled")
	}
	if gotA != respA {
		t.Fatal("handler A did not receive response A")
	}
	if gotB != nil {
		t.Fatal("handler B fired for a response addressed to handle 10")
	}
	select {
	case <-prB.done:
		t.Fatal("operation B was settled by a response for handle 10")
	default:
	}
	if _, stillPending := s.pending[20]; !stillPending {
		t.Fatal("unrelated pending request 20 was removed")
	}
	if _, stillPending := s.pending[10]; stillPending {
		t.Fatal("settled request 10 was not removed from the pending map")
	}
}

// TestDispatchUnknownHandleIsDropped checks the "late response silently
// dropped" behavior (§4.4 Timeout) at the dispatch layer: a response whose
// handle has no pending entry (already timed out, or never existed) must
// not panic and must not touch any other entry.
func TestDispatchUnknownHandleIsDropped(t *testing.T) {
	s := newBareChannel()
	var fired bool
	s.pending[1] = &pendingRequest{done: make(chan struct{}), handler: func(interface{}) error {
		fired = true
		return nil
	}}

	resp := &ua.ReadResponse{ResponseHeader: &ua.ResponseHeader{RequestHandle: 999, ServiceResult: ua.StatusOK}}
	s.dispatch(resp)

	if fired {
		t.Fatal("handler for an unrelated handle fired")
	}
	if _, ok := s.pending[1]; !ok {
		t.Fatal("dispatch of an unknown handle removed an unrelated pending entry")
	}
}

// TestDispatchServiceFaultSettlesWithError checks that a bad ServiceResult
// carried by a ServiceFault settles the operation with that status rather
// than invoking the handler (§7 "bad ServiceResult... raised on that
// request's awaiter").
func TestDispatchServiceFaultSettlesWithError(t *testing.T) {
	s := newBareChannel()
	var handlerCalled bool
	pr := &pendingRequest{done: make(chan struct{}), handler: func(interface{}) error {
		handlerCalled = true
		return nil
	}}
	s.pending[5] = pr

	fault := &ua.ServiceFault{ResponseHeader: &ua.ResponseHeader{RequestHandle: 5, ServiceResult: ua.StatusBadSessionIDInvalid}}
	s.dispatch(fault)

	if handlerCalled {
		t.Fatal("handler ran for a ServiceFault")
	}
	if pr.err != ua.StatusBadSessionIDInvalid {
		t.Fatalf("pr.err = %v, want BadSessionIdInvalid", pr.err)
	}
}

// TestFailSettlesEveryPendingOperation is §8 property 6's counterpart on
// the fault path, and the "fault anywhere aborts... fails all in-flight
// operations" rule of §2: every pending operation settles with the same
// error, none is left hanging.
func TestFailSettlesEveryPendingOperation(t *testing.T) {
	s := newBareChannel()
	s.errCh = make(chan error, 1)
	s.life = nil // exercise the nil-safe path

	const n = 10
	prs := make([]*pendingRequest, n)
	for i := 0; i < n; i++ {
		prs[i] = &pendingRequest{done: make(chan struct{})}
		s.pending[uint32(i+1)] = prs[i]
	}

	boom := ua.StatusBadSecureChannelClosed
	s.fail(boom)

	for i, pr := range prs {
		select {
		case <-pr.done:
		default:
			t.Fatalf("operation %d was not settled by fail()", i)
		}
		if pr.err != boom {
			t.Fatalf("operation %d err = %v, want %v", i, pr.err, boom)
		}
	}
	if len(s.pending) != 0 {
		t.Fatalf("pending map still has %d entries after fail()", len(s.pending))
	}
}
