package models

import (
	"time"

	"github.com/google/uuid"
)

// Capability is the declared capability class of a provider.
type Capability string

const (
	CapabilityChat           Capability = "chat"
	CapabilityClassification Capability = "classification"
	CapabilityEmbedding      Capability = "embedding"
)

// FailureKind classifies a provider call failure.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureAuth        FailureKind = "auth_error"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed"
	FailureTransport   FailureKind = "transport_error"
)

// ProviderProfile is the static descriptor for one configured provider.
// Profiles are built once at startup and never mutated afterwards.
type ProviderProfile struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Capability Capability    `json:"capability"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	Weight     float64       `json:"weight"`
}

// Message is one prompt message in provider-agnostic form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RenderedPrompt is the provider-agnostic output of the prompt builder.
type RenderedPrompt struct {
	System   string    `json:"system"`
	Messages []Message `json:"messages"`
}

// CallRequest is one outbound unit of work for a single provider. It is
// owned by the fan-out scheduler for its lifetime; adapters only read it.
type CallRequest struct {
	ID          string         `json:"id"`
	BatchID     string         `json:"batch_id"`
	ProviderID  string         `json:"provider_id"`
	Prompt      RenderedPrompt `json:"prompt"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
}

// CallFailure describes why a provider call produced no usable content.
type CallFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// CallResult is the terminal outcome of one provider call. Failure is
// nil on success. Adapters never return a Go error past their boundary;
// everything that goes wrong is folded into Failure.
type CallResult struct {
	ProviderID string       `json:"provider_id"`
	Content    string       `json:"content"`
	Label      string       `json:"label,omitempty"`
	Confidence float64      `json:"confidence"`
	Intensity  float64      `json:"intensity,omitempty"`
	TokensUsed int          `json:"tokens_used"`
	LatencyMs  int64        `json:"latency_ms"`
	Failure    *CallFailure `json:"failure,omitempty"`
}

// OK reports whether the call produced usable content.
func (r *CallResult) OK() bool {
	return r != nil && r.Failure == nil
}

// Fail builds a failure result for the given provider.
func Fail(providerID string, kind FailureKind, message string, latency time.Duration) *CallResult {
	return &CallResult{
		ProviderID: providerID,
		Failure:    &CallFailure{Kind: kind, Message: message},
		LatencyMs:  latency.Milliseconds(),
	}
}

// ConsensusResult is the fused output of one ensemble batch. It is
// computed fresh per request and never mutated after creation.
type ConsensusResult struct {
	Content            string   `json:"content"`
	Label              string   `json:"label,omitempty"`
	EnsembleConfidence float64  `json:"ensemble_confidence"`
	DisagreementScore  float64  `json:"disagreement_score"`
	Contributors       []string `json:"contributors"`
	Attempted          int      `json:"attempted"`
	Succeeded          int      `json:"succeeded"`
	SynthesisNote      string   `json:"synthesis_note,omitempty"`
}

// Turn is one entry of a session's conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitOptions are the caller-tunable knobs for one Submit call.
// Zero-valued fields fall back to documented defaults: all configured
// providers, 1000 max tokens, temperature 0.7.
type SubmitOptions struct {
	UseAllProviders   bool     `json:"use_all_providers"`
	SelectedProviders []string `json:"selected_providers,omitempty"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
}

// SubmitResult is the response envelope returned to the caller. For a
// well-formed request it is always populated; FallbackUsed marks the
// degraded path where no provider succeeded.
type SubmitResult struct {
	Content            string   `json:"content"`
	FallbackUsed       bool     `json:"fallback_used"`
	EnsembleConfidence float64  `json:"ensemble_confidence,omitempty"`
	DisagreementScore  float64  `json:"disagreement_score,omitempty"`
	ProvidersAttempted int      `json:"providers_attempted"`
	ProvidersSucceeded int      `json:"providers_succeeded"`
	ContributingModels []string `json:"contributing_models,omitempty"`
	SynthesisNote      string   `json:"synthesis_note,omitempty"`
	ProcessingTimeMs   int64    `json:"processing_time_ms"`
}

// SentimentResult is the fused output of a sentiment classification batch.
type SentimentResult struct {
	Sentiment          string             `json:"sentiment"`
	EnsembleConfidence float64            `json:"ensemble_confidence"`
	DisagreementScore  float64            `json:"disagreement_score"`
	EmotionalIntensity float64            `json:"emotional_intensity"`
	EmotionScores      map[string]float64 `json:"emotion_scores,omitempty"`
	ProvidersAttempted int                `json:"providers_attempted"`
	ProvidersSucceeded int                `json:"providers_succeeded"`
	FallbackUsed       bool               `json:"fallback_used"`
	ProcessingTimeMs   int64              `json:"processing_time_ms"`
}

// NewBatchID mints a correlation id shared by all requests in one fan-out.
func NewBatchID() string {
	return "batch-" + uuid.NewString()
}

// NewRequestID mints a per-call request id.
func NewRequestID() string {
	return "req-" + uuid.NewString()
}
