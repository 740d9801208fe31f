package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.CheckoutsTotal == nil || r.CheckinsTotal == nil || r.CommandsTotal == nil {
		t.Fatal("metrics not initialized")
	}

	// Two registries must not collide.
	_ = NewRegistry()
}

func TestObserveCheckout(t *testing.T) {
	r := NewRegistry()

	r.ObserveCheckout(ResultFresh, 1, 0)
	r.ObserveCheckout(ResultAcquired, 3, 20*time.Millisecond)
	r.ObserveCheckout(ResultTimeout, 200, 2*time.Second)

	if got := testutil.ToFloat64(r.CheckoutsTotal.WithLabelValues(ResultTimeout)); got != 1 {
		t.Errorf("timeout count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.CheckoutAttempts); got != 1 {
		t.Errorf("attempts histogram series = %d, want 1", got)
	}
}

func TestObserveCheckinAndCommands(t *testing.T) {
	r := NewRegistry()

	r.ObserveCheckin("set")
	r.ObserveCheckin("set")
	r.ObserveCheckin("delete")
	r.ObserveBackendError("checkout")
	r.ObserveCommand("GETSET", true)
	r.ObserveCommand("GETSET", false)

	if got := testutil.ToFloat64(r.CheckinsTotal.WithLabelValues("set")); got != 2 {
		t.Errorf("set checkins = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues("GETSET", "error")); got != 1 {
		t.Errorf("GETSET errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.BackendErrors.WithLabelValues("checkout")); got != 1 {
		t.Errorf("backend errors = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveCheckin("delete")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `boxstore_checkins_total{op="delete"} 1`) {
		t.Errorf("metrics output missing checkin counter:\n%s", body)
	}
}
