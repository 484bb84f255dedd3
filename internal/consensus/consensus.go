// Package consensus fuses the per-provider results of one ensemble
// batch into a single answer with an explicit disagreement measure. It
// is pure computation over already-collected data: no I/O, no blocking,
// and it never fabricates content. When zero results are usable it
// returns ErrNoConsensus and the caller decides what to do next.
package consensus

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quorumai/quorum/internal/models"
)

// ErrNoConsensus signals that no provider produced a usable result.
var ErrNoConsensus = errors.New("no consensus possible: zero successful results")

// Config holds the tunable constants of the confidence formula. The
// boost compensates for the multiplicative dampening of average
// confidence and agreement; the clamp avoids both false certainty and
// degenerate zero-confidence outputs.
type Config struct {
	ConfidenceBoost  float64
	MinConfidence    float64
	MaxConfidence    float64
	OverlapThreshold float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		ConfidenceBoost:  1.2,
		MinConfidence:    0.1,
		MaxConfidence:    0.98,
		OverlapThreshold: 0.3,
	}
}

// Engine reduces batches of call results. Stateless and safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine; a zero Config selects the defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.ConfidenceBoost == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// FuseLabels reduces categorical results (e.g. sentiment labels). Each
// successful result casts a vote weighted by providerWeight times its
// confidence; the winning label is the argmax of accumulated weight.
// Ties break deterministically: highest single provider weight among
// the tied labels, then lexicographically smallest label.
func (e *Engine) FuseLabels(results []*models.CallResult, profiles []models.ProviderProfile) (*models.ConsensusResult, error) {
	weights := weightsByID(profiles)
	successes := successful(results)
	if len(successes) == 0 {
		return nil, ErrNoConsensus
	}

	labelWeights := make(map[string]float64)
	labelTopProvider := make(map[string]float64) // strongest single backer per label
	var confidenceSum float64
	contributors := make([]string, 0, len(successes))

	for _, r := range successes {
		w := weights[r.ProviderID] * r.Confidence
		labelWeights[r.Label] += w
		if weights[r.ProviderID] > labelTopProvider[r.Label] {
			labelTopProvider[r.Label] = weights[r.ProviderID]
		}
		confidenceSum += r.Confidence
		contributors = append(contributors, r.ProviderID)
	}

	winner, top, second := rankLabels(labelWeights, labelTopProvider)

	disagreement := 0.0
	if top > 0 {
		disagreement = second / top
	}
	avgConfidence := confidenceSum / float64(len(successes))

	return &models.ConsensusResult{
		Label:              winner,
		Content:            winner,
		EnsembleConfidence: e.ensembleConfidence(avgConfidence, disagreement),
		DisagreementScore:  disagreement,
		Contributors:       contributors,
		Attempted:          len(results),
		Succeeded:          len(successes),
	}, nil
}

// FuseText reduces free-text results. Numeric voting over prose is not
// meaningful, so the engine selects the single result with the highest
// confidence; confidence ties break on provider weight, then provider
// id, so repeated runs always pick the same answer. The synthesis note
// is advisory transparency and never blocks selection.
func (e *Engine) FuseText(results []*models.CallResult, profiles []models.ProviderProfile) (*models.ConsensusResult, error) {
	weights := weightsByID(profiles)
	successes := successful(results)
	if len(successes) == 0 {
		return nil, ErrNoConsensus
	}

	sorted := make([]*models.CallResult, len(successes))
	copy(sorted, successes)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if weights[a.ProviderID] != weights[b.ProviderID] {
			return weights[a.ProviderID] > weights[b.ProviderID]
		}
		return a.ProviderID < b.ProviderID
	})
	selected := sorted[0]

	// Agreement here is lexical, not semantic: results sharing enough
	// token overlap with the selected answer count as concurring.
	agreeing := []string{selected.ProviderID}
	for _, r := range successes {
		if r.ProviderID == selected.ProviderID {
			continue
		}
		if tokenOverlap(selected.Content, r.Content) >= e.cfg.OverlapThreshold {
			agreeing = append(agreeing, r.ProviderID)
		}
	}
	sort.Strings(agreeing[1:])

	disagreement := 1.0 - float64(len(agreeing))/float64(len(successes))
	var confidenceSum float64
	contributors := make([]string, 0, len(successes))
	for _, r := range successes {
		confidenceSum += r.Confidence
		contributors = append(contributors, r.ProviderID)
	}
	avgConfidence := confidenceSum / float64(len(successes))

	note := ""
	if len(successes) > 1 {
		note = fmt.Sprintf("%d of %d providers agreed in substance: %s",
			len(agreeing), len(successes), strings.Join(agreeing, ", "))
	}

	return &models.ConsensusResult{
		Content:            selected.Content,
		EnsembleConfidence: e.ensembleConfidence(avgConfidence, disagreement),
		DisagreementScore:  disagreement,
		Contributors:       contributors,
		Attempted:          len(results),
		Succeeded:          len(successes),
		SynthesisNote:      note,
	}, nil
}

// ensembleConfidence rewards high individual confidence and low
// disagreement, clamped so the result never reads as certainty or as
// noise.
func (e *Engine) ensembleConfidence(avgConfidence, disagreement float64) float64 {
	c := avgConfidence * (1 - disagreement) * e.cfg.ConfidenceBoost
	if c > e.cfg.MaxConfidence {
		c = e.cfg.MaxConfidence
	}
	if c < e.cfg.MinConfidence {
		c = e.cfg.MinConfidence
	}
	return c
}

// rankLabels returns the winning label and the top two accumulated
// weights. The tie-break is deterministic and documented: among labels
// with equal accumulated weight, the one backed by the heaviest single
// provider wins; a remaining tie falls to the lexicographically
// smallest label.
func rankLabels(labelWeights, labelTopProvider map[string]float64) (string, float64, float64) {
	type entry struct {
		label  string
		weight float64
	}
	entries := make([]entry, 0, len(labelWeights))
	for label, w := range labelWeights {
		entries = append(entries, entry{label, w})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		if labelTopProvider[a.label] != labelTopProvider[b.label] {
			return labelTopProvider[a.label] > labelTopProvider[b.label]
		}
		return a.label < b.label
	})

	winner := entries[0].label
	top := entries[0].weight
	second := 0.0
	if len(entries) > 1 {
		second = entries[1].weight
	}
	return winner, top, second
}

// weightsByID indexes provider weights by provider id.
func weightsByID(profiles []models.ProviderProfile) map[string]float64 {
	out := make(map[string]float64, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p.Weight
	}
	return out
}

func successful(results []*models.CallResult) []*models.CallResult {
	out := make([]*models.CallResult, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// tokenOverlap computes the Jaccard overlap of the case-folded token
// sets of two texts.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]")
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}
