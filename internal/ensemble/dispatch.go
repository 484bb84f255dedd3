// Package ensemble contains the fan-out scheduler and the orchestrator
// that ties prompt building, dispatch, consensus, and fallback together.
package ensemble

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/quorumai/quorum/internal/metrics"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

// minCeiling is the floor for the batch safety-net timeout.
const minCeiling = time.Second

// Dispatcher fans one request out to N providers concurrently and
// joins all results. It is safe for concurrent use across requests.
type Dispatcher struct {
	registry  *provider.Registry
	sem       *semaphore.Weighted
	collector *metrics.Collector
	log       *logrus.Logger
}

// NewDispatcher creates a dispatcher with bounded concurrency.
func NewDispatcher(registry *provider.Registry, maxConcurrent int64, collector *metrics.Collector, log *logrus.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{
		registry:  registry,
		sem:       semaphore.NewWeighted(maxConcurrent),
		collector: collector,
		log:       log,
	}
}

type indexedResult struct {
	idx int
	res *models.CallResult
}

// Dispatch launches one call per profile and waits for every call to
// reach a terminal state. This is a join, not a race: the consensus
// engine needs the full picture to compute disagreement meaningfully.
//
// The returned slice always has exactly one entry per input profile, in
// input order. A global ceiling of twice the longest per-provider
// timeout bounds the whole batch; calls still outstanding when it fires
// are recorded as timeouts and abandoned (cancellation is best-effort —
// the dispatcher never blocks waiting for it to be honored).
func (d *Dispatcher) Dispatch(ctx context.Context, rendered models.RenderedPrompt, maxTokens int, temperature float64, profiles []models.ProviderProfile) []*models.CallResult {
	results := make([]*models.CallResult, len(profiles))
	if len(profiles) == 0 {
		return results
	}

	batchID := models.NewBatchID()
	ceiling := ceilingTimeout(profiles)
	batchCtx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	// Buffered so late finishers never block after the ceiling fires.
	ch := make(chan indexedResult, len(profiles))

	for i, prof := range profiles {
		go func(idx int, prof models.ProviderProfile) {
			req := &models.CallRequest{
				ID:          models.NewRequestID(),
				BatchID:     batchID,
				ProviderID:  prof.ID,
				Prompt:      rendered,
				MaxTokens:   maxTokens,
				Temperature: temperature,
			}

			if err := d.sem.Acquire(batchCtx, 1); err != nil {
				ch <- indexedResult{idx, models.Fail(prof.ID, models.FailureTimeout, "batch ceiling reached before dispatch", 0)}
				return
			}
			defer d.sem.Release(1)

			p, ok := d.registry.Provider(prof.ID)
			if !ok {
				ch <- indexedResult{idx, models.Fail(prof.ID, models.FailureTransport, "provider not registered", 0)}
				return
			}

			ch <- indexedResult{idx, p.Call(batchCtx, req)}
		}(i, prof)
	}

	remaining := len(profiles)
	timer := time.NewTimer(ceiling)
	defer timer.Stop()

	for remaining > 0 {
		select {
		case ir := <-ch:
			results[ir.idx] = ir.res
			remaining--
		case <-timer.C:
			cancel()
			for i := range results {
				if results[i] == nil {
					results[i] = models.Fail(profiles[i].ID, models.FailureTimeout,
						"batch ceiling timeout", ceiling)
				}
			}
			remaining = 0
		}
	}

	for _, res := range results {
		d.observe(res)
	}
	d.log.WithFields(logrus.Fields{
		"batch":     batchID,
		"providers": len(profiles),
		"succeeded": countOK(results),
	}).Debug("batch dispatched")

	return results
}

func (d *Dispatcher) observe(res *models.CallResult) {
	d.registry.Observe(res)
	if d.collector == nil {
		return
	}
	d.collector.ProviderCalls.WithLabelValues(res.ProviderID).Inc()
	d.collector.ProviderLatency.WithLabelValues(res.ProviderID).Observe(float64(res.LatencyMs) / 1000)
	if !res.OK() {
		d.collector.ProviderFailures.WithLabelValues(res.ProviderID, string(res.Failure.Kind)).Inc()
	}
}

// ceilingTimeout is twice the longest per-provider timeout, floored at
// one second.
func ceilingTimeout(profiles []models.ProviderProfile) time.Duration {
	var longest time.Duration
	for _, p := range profiles {
		if p.Timeout > longest {
			longest = p.Timeout
		}
	}
	ceiling := 2 * longest
	if ceiling < minCeiling {
		ceiling = minCeiling
	}
	return ceiling
}

func countOK(results []*models.CallResult) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}
