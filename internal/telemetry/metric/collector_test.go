package metric

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/boxstore-go/internal/pool"
)

func TestPoolCollector(t *testing.T) {
	stats := pool.Stats{Active: 3, Idle: 5, Waiting: 1, Created: 9, Destroyed: 1, MaxTotal: 1100}
	c := NewPoolCollector("redis", func() pool.Stats { return stats })

	r := NewRegistry()
	r.Registerer().MustRegister(c)

	expected := `
# HELP boxstore_pool_active Borrowed connections
# TYPE boxstore_pool_active gauge
boxstore_pool_active{pool="redis"} 3
# HELP boxstore_pool_idle Idle connections
# TYPE boxstore_pool_idle gauge
boxstore_pool_idle{pool="redis"} 5
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"boxstore_pool_active", "boxstore_pool_idle"); err != nil {
		t.Error(err)
	}

	if got := testutil.CollectAndCount(c); got != 6 {
		t.Errorf("series = %d, want 6", got)
	}
}
