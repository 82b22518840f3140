package safetylimits

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carelog/go-dpe/pkg/circuitbreaker"
)

func newBreaker(t *testing.T) *circuitbreaker.CircuitBreaker {
	t.Helper()
	cb, err := circuitbreaker.New(circuitbreaker.DefaultConfig("formulary-test"), nil)
	if err != nil {
		t.Fatalf("new breaker: %v", err)
	}
	return cb
}

func TestClientFetchesRemoteCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/limits/corticosteroid" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"class":"corticosteroid","max_per_dose":25}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newBreaker(t), nil)
	if got := c.CeilingFor(context.Background(), "corticosteroid"); got != 25 {
		t.Errorf("got %v, want remote ceiling 25", got)
	}
}

func TestClientFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newBreaker(t), nil)
	if got := c.CeilingFor(context.Background(), "corticosteroid"); got != 20 {
		t.Errorf("got %v, want static ceiling 20", got)
	}
}

func TestClientFallsBackOnUnreachableService(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", newBreaker(t), nil)
	if got := c.CeilingFor(context.Background(), "anticoagulant"); got != 15 {
		t.Errorf("got %v, want static ceiling 15", got)
	}
}

func TestClientRejectsNonPositiveRemoteCeiling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"class":"thyroid","max_per_dose":0}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newBreaker(t), nil)
	if got := c.CeilingFor(context.Background(), "thyroid"); got != 0.3 {
		t.Errorf("got %v, want static ceiling 0.3", got)
	}
}

func TestNilClientServesStaticTable(t *testing.T) {
	var c *Client
	if got := c.CeilingFor(context.Background(), "opioid"); got != 120 {
		t.Errorf("got %v, want static ceiling 120", got)
	}
}
