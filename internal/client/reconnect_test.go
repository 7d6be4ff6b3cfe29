package client

import (
	"testing"
	"time"
)

func TestReconnector_HappyPath(t *testing.T) {
	var transitions []State
	r := NewReconnector(DefaultBackoff(), func(s State) {
		transitions = append(transitions, s)
	})

	if r.State() != StateDisconnected {
		t.Fatalf("Expected initial state disconnected, got %s", r.State())
	}

	if !r.Connecting() {
		t.Fatal("Connecting from disconnected should be allowed")
	}
	r.Connected()

	if r.State() != StateConnected {
		t.Errorf("Expected connected, got %s", r.State())
	}

	want := []State{StateConnecting, StateConnected}
	if len(transitions) != len(want) {
		t.Fatalf("Expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestReconnector_ConnectingFromConnectedRejected(t *testing.T) {
	r := NewReconnector(DefaultBackoff(), nil)
	r.Connecting()
	r.Connected()

	if r.Connecting() {
		t.Error("Connecting while connected should be rejected")
	}
}

func TestReconnector_BackoffProgression(t *testing.T) {
	r := NewReconnector(Backoff{Floor: time.Second, Ceiling: 10 * time.Second, MaxAttempts: 10}, nil)
	r.Connecting()
	r.Connected()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}

	for i, expected := range want {
		delay, ok := r.Dropped()
		if !ok {
			t.Fatalf("Attempt %d unexpectedly exhausted", i+1)
		}
		if delay != expected {
			t.Errorf("Attempt %d: expected delay %v, got %v", i+1, expected, delay)
		}
		if r.State() != StateReconnecting {
			t.Errorf("Attempt %d: expected reconnecting, got %s", i+1, r.State())
		}
	}
}

func TestReconnector_FailsAfterMaxAttempts(t *testing.T) {
	r := NewReconnector(Backoff{Floor: time.Second, Ceiling: 10 * time.Second, MaxAttempts: 3}, nil)
	r.Connecting()
	r.Connected()

	for i := 0; i < 3; i++ {
		if _, ok := r.Dropped(); !ok {
			t.Fatalf("Attempt %d should still be within budget", i+1)
		}
	}

	if _, ok := r.Dropped(); ok {
		t.Fatal("Fourth drop should exhaust the budget")
	}
	if r.State() != StateFailed {
		t.Errorf("Expected failed, got %s", r.State())
	}

	// Failed is terminal for automatic reconnects.
	if _, ok := r.Dropped(); ok {
		t.Error("Dropped after failed should not schedule anything")
	}
}

func TestReconnector_SuccessResetsAttempts(t *testing.T) {
	r := NewReconnector(Backoff{Floor: time.Second, Ceiling: 10 * time.Second, MaxAttempts: 10}, nil)
	r.Connecting()
	r.Connected()

	r.Dropped()
	r.Dropped()
	r.Connected()

	if r.Attempts() != 0 {
		t.Errorf("Expected attempt counter reset on success, got %d", r.Attempts())
	}
	delay, ok := r.Dropped()
	if !ok || delay != time.Second {
		t.Errorf("Expected floor delay after reset, got %v ok=%v", delay, ok)
	}
}

func TestReconnector_ServerClosedImmediate(t *testing.T) {
	r := NewReconnector(DefaultBackoff(), nil)
	r.Connecting()
	r.Connected()

	delay, ok := r.ServerClosed()
	if !ok {
		t.Fatal("ServerClosed while connected should schedule a reconnect")
	}
	if delay != 0 {
		t.Errorf("Server-initiated close reconnects immediately, got delay %v", delay)
	}
	if r.State() != StateReconnecting {
		t.Errorf("Expected reconnecting, got %s", r.State())
	}
}

func TestReconnector_CancelStopsEverything(t *testing.T) {
	r := NewReconnector(DefaultBackoff(), nil)
	r.Connecting()
	r.Connected()
	r.Cancel()

	if r.State() != StateDisconnected {
		t.Errorf("Expected disconnected after cancel, got %s", r.State())
	}
	if _, ok := r.Dropped(); ok {
		t.Error("Dropped after cancel should not schedule anything")
	}
	if _, ok := r.ServerClosed(); ok {
		t.Error("ServerClosed after cancel should not schedule anything")
	}
}
