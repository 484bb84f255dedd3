package ensemble

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/quorumai/quorum/internal/consensus"
	"github.com/quorumai/quorum/internal/models"
)

const (
	sentimentMaxTokens   = 150
	sentimentTemperature = 0.1
)

// emotionLexicon maps emotions to trigger words for the keyword pass
// that runs alongside the provider classification. It is deliberately
// small; the providers carry the real signal.
var emotionLexicon = map[string][]string{
	"joy":          {"happy", "delighted", "thrilled", "excited", "wonderful", "love", "great"},
	"anger":        {"angry", "furious", "outraged", "annoyed", "hate", "terrible"},
	"fear":         {"afraid", "scared", "worried", "anxious", "nervous", "panic"},
	"sadness":      {"sad", "depressed", "disappointed", "unhappy", "miserable", "crying"},
	"surprise":     {"surprised", "shocked", "amazed", "unexpected", "astonished"},
	"disgust":      {"disgusted", "revolting", "awful", "gross", "horrible"},
	"trust":        {"trust", "reliable", "dependable", "confident", "faith"},
	"anticipation": {"eager", "hopeful", "looking forward", "expecting", "soon"},
}

// AnalyzeSentiment classifies a piece of text by fanning the same
// classification prompt to every chat-capable provider and fusing the
// returned labels by weighted vote. Zero successes degrade to a
// neutral verdict rather than an error.
func (o *Orchestrator) AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	rendered := o.builder.BuildClassification(text)
	profiles := o.registry.EnabledProfiles(nil)

	var results []*models.CallResult
	if len(profiles) > 0 {
		results = o.dispatcher.Dispatch(ctx, *rendered, sentimentMaxTokens, sentimentTemperature, profiles)
		for _, res := range results {
			if res.OK() {
				applySentimentPayload(res)
			}
		}
	}

	fused, err := o.engine.FuseLabels(results, profiles)
	if errors.Is(err, consensus.ErrNoConsensus) {
		o.record("sentiment", "fallback", 0)
		return &models.SentimentResult{
			Sentiment:          "neutral",
			EnsembleConfidence: 0.1,
			EmotionScores:      scoreEmotions(text),
			ProvidersAttempted: len(results),
			FallbackUsed:       true,
			ProcessingTimeMs:   time.Since(start).Milliseconds(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	o.record("sentiment", "consensus", fused.DisagreementScore)

	return &models.SentimentResult{
		Sentiment:          fused.Label,
		EnsembleConfidence: fused.EnsembleConfidence,
		DisagreementScore:  fused.DisagreementScore,
		EmotionalIntensity: averageIntensity(results),
		EmotionScores:      scoreEmotions(text),
		ProvidersAttempted: fused.Attempted,
		ProvidersSucceeded: fused.Succeeded,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

type sentimentPayload struct {
	Sentiment          string  `json:"sentiment"`
	Confidence         float64 `json:"confidence"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
}

// applySentimentPayload parses a provider's classification reply into
// the result's Label/Confidence/Intensity fields. Providers wrap JSON
// in prose or code fences often enough that we extract the first
// object instead of unmarshalling the raw content. An unparseable
// reply becomes a malformed failure so it carries no vote.
func applySentimentPayload(res *models.CallResult) {
	raw := extractJSONObject(res.Content)
	if raw == "" {
		res.Failure = &models.CallFailure{Kind: models.FailureMalformed, Message: "no JSON object in classification reply"}
		return
	}

	var payload sentimentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		res.Failure = &models.CallFailure{Kind: models.FailureMalformed, Message: "unparseable classification reply"}
		return
	}

	label := strings.ToLower(strings.TrimSpace(payload.Sentiment))
	switch label {
	case "positive", "negative", "neutral":
	default:
		res.Failure = &models.CallFailure{Kind: models.FailureMalformed, Message: "unknown sentiment label " + label}
		return
	}

	res.Label = label
	res.Intensity = clamp01(payload.EmotionalIntensity)
	if payload.Confidence > 0 {
		res.Confidence = clamp01(payload.Confidence)
	}
}

// extractJSONObject returns the first balanced {...} span in s, or "".
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func scoreEmotions(text string) map[string]float64 {
	lower := strings.ToLower(text)
	scores := make(map[string]float64)
	for emotion, words := range emotionLexicon {
		hits := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > 0 {
			scores[emotion] = clamp01(float64(hits) / 3.0)
		}
	}
	return scores
}

func averageIntensity(results []*models.CallResult) float64 {
	var sum float64
	var n int
	for _, res := range results {
		if res.OK() {
			sum += res.Intensity
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
