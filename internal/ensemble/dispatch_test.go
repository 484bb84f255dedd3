package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quorumai/quorum/internal/metrics"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockProvider returns a canned result after an optional delay. It
// honors context cancellation like a real adapter would.
type mockProvider struct {
	id      string
	delay   time.Duration
	content string
	label   string
	conf    float64
	failure *models.CallFailure
}

func (m *mockProvider) ID() string { return m.id }

func (m *mockProvider) Call(ctx context.Context, req *models.CallRequest) *models.CallResult {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return models.Fail(m.id, models.FailureTimeout, ctx.Err().Error(), m.delay)
		}
	}
	if m.failure != nil {
		return &models.CallResult{ProviderID: m.id, Failure: m.failure}
	}
	return &models.CallResult{
		ProviderID: m.id,
		Content:    m.content,
		Label:      m.label,
		Confidence: m.conf,
		LatencyMs:  m.delay.Milliseconds(),
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestRegistry(t *testing.T, providers ...*mockProvider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry(time.Minute, quietLogger())
	for _, p := range providers {
		reg.Register(models.ProviderProfile{
			ID:         p.id,
			Name:       p.id,
			Capability: models.CapabilityChat,
			Timeout:    200 * time.Millisecond,
			Weight:     1.0,
		}, p)
	}
	return reg
}

func testPrompt() models.RenderedPrompt {
	return models.RenderedPrompt{
		System:   "test system",
		Messages: []models.Message{{Role: "user", Content: "hello"}},
	}
}

func TestDispatchPreservesInputOrder(t *testing.T) {
	// The slow provider sorts first; its result must still land first.
	slow := &mockProvider{id: "a-slow", delay: 80 * time.Millisecond, content: "slow answer", conf: 0.8}
	fast := &mockProvider{id: "b-fast", delay: 5 * time.Millisecond, content: "fast answer", conf: 0.9}

	reg := newTestRegistry(t, slow, fast)
	d := NewDispatcher(reg, 8, metrics.NewCollector(nil), quietLogger())

	profiles := reg.Profiles()
	require.Equal(t, "a-slow", profiles[0].ID)

	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, profiles)

	require.Len(t, results, 2)
	assert.Equal(t, "a-slow", results[0].ProviderID)
	assert.Equal(t, "slow answer", results[0].Content)
	assert.Equal(t, "b-fast", results[1].ProviderID)
	assert.Equal(t, "fast answer", results[1].Content)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	ok := &mockProvider{id: "healthy", content: "fine", conf: 0.9}
	broken := &mockProvider{id: "broken", failure: &models.CallFailure{Kind: models.FailureAuth, Message: "401"}}

	reg := newTestRegistry(t, ok, broken)
	d := NewDispatcher(reg, 8, nil, quietLogger())

	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, reg.Profiles())

	require.Len(t, results, 2)
	for _, res := range results {
		require.NotNil(t, res)
	}
	assert.False(t, results[0].OK())
	assert.Equal(t, models.FailureAuth, results[0].Failure.Kind)
	assert.True(t, results[1].OK())
	assert.Equal(t, "fine", results[1].Content)
}

func TestDispatchCeilingCutsOffHungProvider(t *testing.T) {
	hung := &mockProvider{id: "hung", delay: 5 * time.Second, content: "never"}
	quick := &mockProvider{id: "quick", content: "done", conf: 0.9}

	reg := newTestRegistry(t, hung, quick)
	d := NewDispatcher(reg, 8, nil, quietLogger())

	start := time.Now()
	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, reg.Profiles())
	elapsed := time.Since(start)

	// Profiles carry 200ms timeouts; the floor makes the ceiling 1s.
	assert.Less(t, elapsed, 3*time.Second)

	require.Len(t, results, 2)
	require.NotNil(t, results[0])
	assert.False(t, results[0].OK())
	assert.Equal(t, models.FailureTimeout, results[0].Failure.Kind)
	assert.True(t, results[1].OK())
}

func TestDispatchEmptyProfiles(t *testing.T) {
	reg := newTestRegistry(t)
	d := NewDispatcher(reg, 8, nil, quietLogger())

	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, nil)
	assert.Empty(t, results)
}

func TestDispatchUnregisteredProvider(t *testing.T) {
	reg := newTestRegistry(t)
	d := NewDispatcher(reg, 8, nil, quietLogger())

	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, []models.ProviderProfile{
		{ID: "ghost", Timeout: 100 * time.Millisecond, Weight: 1.0},
	})

	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Equal(t, models.FailureTransport, results[0].Failure.Kind)
}

func TestDispatchBoundedConcurrency(t *testing.T) {
	providers := make([]*mockProvider, 4)
	for i := range providers {
		providers[i] = &mockProvider{
			id:      "prov-" + string(rune('a'+i)),
			delay:   20 * time.Millisecond,
			content: "ok",
			conf:    0.8,
		}
	}
	reg := newTestRegistry(t, providers...)

	// Concurrency 1 serializes the batch but must still join all four.
	d := NewDispatcher(reg, 1, nil, quietLogger())
	results := d.Dispatch(context.Background(), testPrompt(), 100, 0.7, reg.Profiles())

	require.Len(t, results, 4)
	for _, res := range results {
		assert.True(t, res.OK())
	}
}

func TestCeilingTimeout(t *testing.T) {
	profiles := []models.ProviderProfile{
		{ID: "a", Timeout: 2 * time.Second},
		{ID: "b", Timeout: 5 * time.Second},
	}
	assert.Equal(t, 10*time.Second, ceilingTimeout(profiles))

	// The floor protects batches of very aggressive timeouts.
	assert.Equal(t, time.Second, ceilingTimeout([]models.ProviderProfile{
		{ID: "a", Timeout: 50 * time.Millisecond},
	}))
}
