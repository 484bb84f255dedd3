package ensemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quorumai/quorum/internal/consensus"
	"github.com/quorumai/quorum/internal/fallback"
	"github.com/quorumai/quorum/internal/metrics"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/prompt"
	"github.com/quorumai/quorum/internal/provider"
	"github.com/quorumai/quorum/internal/session"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Configuration errors. These are the only errors Submit returns for a
// well-formed deployment; provider failures degrade to the fallback
// chain instead.
var (
	ErrEmptyMessage    = errors.New("empty user message")
	ErrUnknownProvider = errors.New("unknown provider selected")
)

// SubmitRequest is one caller turn.
type SubmitRequest struct {
	SessionID string
	PersonaID string
	Message   string
	Options   models.SubmitOptions
}

// Orchestrator wires the prompt builder, fan-out dispatcher, consensus
// engine, fallback chain, and session memory into the single operation
// the surrounding service invokes.
type Orchestrator struct {
	registry   *provider.Registry
	builder    *prompt.Builder
	engine     *consensus.Engine
	responder  *fallback.Responder
	sessions   session.Store
	dispatcher *Dispatcher
	collector  *metrics.Collector
	log        *logrus.Logger
	tailTurns  int
}

// NewOrchestrator assembles the engine. All collaborators are passed
// explicitly; there is no package-level state, so tests construct
// orchestrators freely.
func NewOrchestrator(
	registry *provider.Registry,
	builder *prompt.Builder,
	engine *consensus.Engine,
	responder *fallback.Responder,
	sessions session.Store,
	dispatcher *Dispatcher,
	collector *metrics.Collector,
	log *logrus.Logger,
) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		registry:   registry,
		builder:    builder,
		engine:     engine,
		responder:  responder,
		sessions:   sessions,
		dispatcher: dispatcher,
		collector:  collector,
		log:        log,
		tailTurns:  prompt.DefaultTailTurns,
	}
}

// Submit processes one user turn. The contract: a syntactically valid
// request with a known persona always yields a response envelope —
// provider failures never surface as errors, only as FallbackUsed.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.SubmitResult, error) {
	start := time.Now()

	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.PersonaID == "" {
		req.PersonaID = prompt.DefaultPersonaID
	}
	if err := o.validateSelection(req.Options.SelectedProviders); err != nil {
		return nil, err
	}

	history, err := o.sessions.Tail(ctx, req.SessionID, o.tailTurns)
	if err != nil {
		// Degraded memory is not fatal; the turn proceeds without context.
		o.log.WithError(err).WithField("session", req.SessionID).Warn("session tail unavailable")
		history = nil
	}

	rendered, err := o.builder.Build(req.PersonaID, req.Message, history)
	if err != nil {
		return nil, err
	}

	profiles := o.enabledProfiles(req.Options)
	if len(profiles) == 0 {
		o.log.WithField("persona", req.PersonaID).Info("no providers available, using fallback")
		return o.finishWithFallback(ctx, req, nil, start)
	}

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := req.Options.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	results := o.dispatcher.Dispatch(ctx, *rendered, maxTokens, temperature, profiles)

	fused, err := o.engine.FuseText(results, profiles)
	if errors.Is(err, consensus.ErrNoConsensus) {
		return o.finishWithFallback(ctx, req, results, start)
	}
	if err != nil {
		return nil, fmt.Errorf("fuse results: %w", err)
	}

	o.commitTurn(ctx, req.SessionID, req.Message, fused.Content)
	o.record("submit", "consensus", fused.DisagreementScore)

	return &models.SubmitResult{
		Content:            fused.Content,
		FallbackUsed:       false,
		EnsembleConfidence: fused.EnsembleConfidence,
		DisagreementScore:  fused.DisagreementScore,
		ProvidersAttempted: fused.Attempted,
		ProvidersSucceeded: fused.Succeeded,
		ContributingModels: fused.Contributors,
		SynthesisNote:      fused.SynthesisNote,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

// finishWithFallback answers from the local chain after zero providers
// succeeded (or none were available to attempt).
func (o *Orchestrator) finishWithFallback(ctx context.Context, req SubmitRequest, results []*models.CallResult, start time.Time) (*models.SubmitResult, error) {
	content := o.responder.Respond(req.PersonaID, req.Message)
	o.commitTurn(ctx, req.SessionID, req.Message, content)

	if o.collector != nil {
		o.collector.FallbackTotal.Inc()
	}
	o.record("submit", "fallback", 0)

	return &models.SubmitResult{
		Content:            content,
		FallbackUsed:       true,
		ProvidersAttempted: len(results),
		ProvidersSucceeded: 0,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (o *Orchestrator) enabledProfiles(opts models.SubmitOptions) []models.ProviderProfile {
	var selected []string
	if !opts.UseAllProviders && len(opts.SelectedProviders) > 0 {
		selected = opts.SelectedProviders
	}
	return o.registry.EnabledProfiles(selected)
}

func (o *Orchestrator) validateSelection(selected []string) error {
	for _, id := range selected {
		if _, ok := o.registry.Profile(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
		}
	}
	return nil
}

// commitTurn appends the user and assistant turns. Session memory is a
// convenience, not a ledger: a failed append is logged and swallowed.
func (o *Orchestrator) commitTurn(ctx context.Context, sessionID, userMessage, reply string) {
	if sessionID == "" {
		return
	}
	now := time.Now()
	err := o.sessions.Append(ctx, sessionID,
		models.Turn{Role: "user", Content: userMessage, Timestamp: now},
		models.Turn{Role: "assistant", Content: reply, Timestamp: now},
	)
	if err != nil {
		o.log.WithError(err).WithField("session", sessionID).Warn("session append failed")
	}
}

func (o *Orchestrator) record(operation, outcome string, disagreement float64) {
	if o.collector == nil {
		return
	}
	o.collector.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	if outcome == "consensus" {
		o.collector.Disagreement.Observe(disagreement)
	}
}
