package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumai/quorum/internal/consensus"
	"github.com/quorumai/quorum/internal/fallback"
	"github.com/quorumai/quorum/internal/metrics"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/prompt"
	"github.com/quorumai/quorum/internal/provider"
	"github.com/quorumai/quorum/internal/session"
)

func newTestOrchestrator(t *testing.T, reg *provider.Registry) (*Orchestrator, *session.MemoryStore) {
	t.Helper()
	table := prompt.DefaultTable()
	sessions := session.NewMemoryStore(50)
	collector := metrics.NewCollector(nil)
	o := NewOrchestrator(
		reg,
		prompt.NewBuilder(table, prompt.DefaultTailTurns),
		consensus.NewEngine(consensus.DefaultConfig()),
		fallback.New(table, 42),
		sessions,
		NewDispatcher(reg, 8, collector, quietLogger()),
		collector,
		quietLogger(),
	)
	return o, sessions
}

func TestSubmitConsensusPath(t *testing.T) {
	reg := newTestRegistry(t,
		&mockProvider{id: "alpha", content: "Paris is the capital of France.", conf: 0.9},
		&mockProvider{id: "beta", content: "The capital of France is Paris.", conf: 0.8},
	)
	o, sessions := newTestOrchestrator(t, reg)

	result, err := o.Submit(context.Background(), SubmitRequest{
		SessionID: "sess-1",
		Message:   "What is the capital of France?",
	})
	require.NoError(t, err)

	assert.False(t, result.FallbackUsed)
	assert.Equal(t, "Paris is the capital of France.", result.Content)
	assert.Equal(t, 2, result.ProvidersAttempted)
	assert.Equal(t, 2, result.ProvidersSucceeded)
	assert.Len(t, result.ContributingModels, 2)
	assert.Greater(t, result.EnsembleConfidence, 0.0)

	// Both turns of the exchange land in session memory.
	tail, err := sessions.Tail(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "user", tail[0].Role)
	assert.Equal(t, "assistant", tail[1].Role)
	assert.Equal(t, result.Content, tail[1].Content)
}

func TestSubmitAllProvidersFailUsesFallback(t *testing.T) {
	reg := newTestRegistry(t,
		&mockProvider{id: "alpha", failure: &models.CallFailure{Kind: models.FailureTransport, Message: "refused"}},
		&mockProvider{id: "beta", failure: &models.CallFailure{Kind: models.FailureRateLimited, Message: "429"}},
	)
	o, _ := newTestOrchestrator(t, reg)

	result, err := o.Submit(context.Background(), SubmitRequest{Message: "hello there"})
	require.NoError(t, err)

	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.Content)
	assert.Equal(t, 2, result.ProvidersAttempted)
	assert.Equal(t, 0, result.ProvidersSucceeded)
}

func TestSubmitNoProvidersConfigured(t *testing.T) {
	reg := newTestRegistry(t)
	o, _ := newTestOrchestrator(t, reg)

	result, err := o.Submit(context.Background(), SubmitRequest{Message: "anyone home?"})
	require.NoError(t, err)

	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.Content)
	assert.Equal(t, 0, result.ProvidersAttempted)
}

func TestSubmitEmptyMessage(t *testing.T) {
	reg := newTestRegistry(t, &mockProvider{id: "alpha", content: "x", conf: 0.9})
	o, _ := newTestOrchestrator(t, reg)

	_, err := o.Submit(context.Background(), SubmitRequest{})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSubmitUnknownSelectedProvider(t *testing.T) {
	reg := newTestRegistry(t, &mockProvider{id: "alpha", content: "x", conf: 0.9})
	o, _ := newTestOrchestrator(t, reg)

	_, err := o.Submit(context.Background(), SubmitRequest{
		Message: "hi",
		Options: models.SubmitOptions{SelectedProviders: []string{"nonexistent"}},
	})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSubmitUnknownPersona(t *testing.T) {
	reg := newTestRegistry(t, &mockProvider{id: "alpha", content: "x", conf: 0.9})
	o, _ := newTestOrchestrator(t, reg)

	_, err := o.Submit(context.Background(), SubmitRequest{
		PersonaID: "no-such-persona",
		Message:   "hi",
	})
	assert.ErrorIs(t, err, prompt.ErrUnknownPersona)
}

func TestSubmitSelectedSubset(t *testing.T) {
	reg := newTestRegistry(t,
		&mockProvider{id: "alpha", content: "from alpha", conf: 0.9},
		&mockProvider{id: "beta", content: "from beta", conf: 0.95},
	)
	o, _ := newTestOrchestrator(t, reg)

	result, err := o.Submit(context.Background(), SubmitRequest{
		Message: "pick one",
		Options: models.SubmitOptions{SelectedProviders: []string{"alpha"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProvidersAttempted)
	assert.Equal(t, "from alpha", result.Content)
}

func TestSubmitHistoryFlowsIntoPrompt(t *testing.T) {
	seen := make(chan models.RenderedPrompt, 1)
	capture := &captureProvider{id: "alpha", seen: seen}

	reg := provider.NewRegistry(time.Minute, quietLogger())
	reg.Register(models.ProviderProfile{
		ID: "alpha", Capability: models.CapabilityChat,
		Timeout: 200 * time.Millisecond, Weight: 1.0,
	}, capture)

	o, sessions := newTestOrchestrator(t, reg)
	require.NoError(t, sessions.Append(context.Background(), "sess-h",
		models.Turn{Role: "user", Content: "earlier question", Timestamp: time.Now()},
		models.Turn{Role: "assistant", Content: "earlier answer", Timestamp: time.Now()},
	))

	_, err := o.Submit(context.Background(), SubmitRequest{
		SessionID: "sess-h",
		Message:   "follow-up",
	})
	require.NoError(t, err)

	rendered := <-seen
	require.Len(t, rendered.Messages, 3)
	assert.Equal(t, "earlier question", rendered.Messages[0].Content)
	assert.Equal(t, "earlier answer", rendered.Messages[1].Content)
	assert.Equal(t, "follow-up", rendered.Messages[2].Content)
}

// captureProvider records the prompt it was called with.
type captureProvider struct {
	id   string
	seen chan models.RenderedPrompt
}

func (c *captureProvider) ID() string { return c.id }

func (c *captureProvider) Call(ctx context.Context, req *models.CallRequest) *models.CallResult {
	c.seen <- req.Prompt
	return &models.CallResult{ProviderID: c.id, Content: "captured", Confidence: 0.9}
}
