package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestGaugeValue(t *testing.T) {
	cases := []struct {
		state State
		want  float64
	}{
		{StateClosed, 0},
		{StateOpen, 1},
		{StateHalfOpen, 2},
	}
	for _, c := range cases {
		if got := c.state.GaugeValue(); got != c.want {
			t.Errorf("GaugeValue(%s) = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestStateChangeHookFiresOnTrip(t *testing.T) {
	cb, err := New(DefaultConfig("hook-test"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var mu sync.Mutex
	var transitions []State
	cb.OnStateChange(func(name string, to State) {
		if name != "hook-test" {
			t.Errorf("hook name = %q, want %q", name, "hook-test")
		}
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	})

	failing := func() (interface{}, error) {
		return nil, errors.New("downstream unavailable")
	}

	// DefaultConfig trips on 5 consecutive failures when the request count
	// is still below MinRequests.
	for i := 0; i < 5; i++ {
		if _, err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if !cb.IsOpen() {
		t.Fatalf("breaker state = %s, want open", cb.GetState())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) == 0 {
		t.Fatal("state change hook never fired")
	}
	if last := transitions[len(transitions)-1]; last != StateOpen {
		t.Errorf("last transition = %s, want %s", last, StateOpen)
	}
}

func TestHookNotCalledWhileClosed(t *testing.T) {
	cb, err := New(DefaultConfig("quiet-test"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fired := false
	cb.OnStateChange(func(string, State) { fired = true })

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return "ok", nil
		}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	if fired {
		t.Error("hook fired without a state transition")
	}
	if !cb.IsClosed() {
		t.Errorf("breaker state = %s, want closed", cb.GetState())
	}
}
