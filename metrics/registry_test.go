package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestComponentRegistryReturnsExistingCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := NewComponentRegistryWith(reg, "novunt", "guard")
	b := NewComponentRegistryWith(reg, "novunt", "guard")

	c1 := a.NewCounter(prometheus.CounterOpts{Name: "accepted_total", Help: "accepted"})
	c2 := b.NewCounter(prometheus.CounterOpts{Name: "accepted_total", Help: "accepted"})

	c1.Inc()
	c2.Inc()
	require.InDelta(t, 2, testutil.ToFloat64(c1), 0)
}

func TestComponentRegistryVecs(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewComponentRegistryWith(reg, "novunt", "cooldown")

	vec := r.NewCounterVec(prometheus.CounterOpts{Name: "triggers_total", Help: "triggers"}, []string{"result"})
	vec.WithLabelValues("triggered").Inc()
	require.InDelta(t, 1, testutil.ToFloat64(vec.WithLabelValues("triggered")), 0)

	n, err := testutil.GatherAndCount(reg, "novunt_cooldown_triggers_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
