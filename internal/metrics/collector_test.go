package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ProviderCalls.WithLabelValues("claude").Inc()
	c.ProviderFailures.WithLabelValues("claude", "timeout").Inc()
	c.FallbackTotal.Inc()
	c.RequestsTotal.WithLabelValues("submit", "consensus").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ProviderCalls.WithLabelValues("claude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FallbackTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["ensemble_provider_calls_total"])
	assert.True(t, names["ensemble_fallback_total"])
	assert.True(t, names["ensemble_requests_total"])
}

func TestNewCollectorNilRegisterer(t *testing.T) {
	c := NewCollector(nil)

	// Usable without registration, which tests rely on.
	c.ProviderCalls.WithLabelValues("x").Inc()
	c.Disagreement.Observe(0.5)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ProviderCalls.WithLabelValues("x")))
}
