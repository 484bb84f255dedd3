// Package provider defines the uniform call contract for external AI
// model backends and the registry that tracks their configured profiles
// and degraded-state cool-downs.
package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quorumai/quorum/internal/models"
)

// Provider wraps one external model endpoint. Call must never return a
// Go error: every failure mode is folded into the CallResult so the
// fan-out scheduler always receives exactly one result per attempt.
type Provider interface {
	ID() string
	Call(ctx context.Context, req *models.CallRequest) *models.CallResult
}

// Registry holds the configured providers and their profiles. Profiles
// are immutable after construction; the only mutable state is the
// cool-down table, which the registry guards internally.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	profiles  map[string]models.ProviderProfile
	cooldowns *Cooldowns
	log       *logrus.Logger
}

// NewRegistry creates an empty registry with the given cool-down window.
func NewRegistry(cooldownWindow time.Duration, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		providers: make(map[string]Provider),
		profiles:  make(map[string]models.ProviderProfile),
		cooldowns: NewCooldowns(cooldownWindow),
		log:       log,
	}
}

// Register adds a provider and its profile. Later registrations with
// the same id replace earlier ones.
func (r *Registry) Register(profile models.ProviderProfile, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[profile.ID] = p
	r.profiles[profile.ID] = profile
	r.log.WithFields(logrus.Fields{
		"provider": profile.ID,
		"weight":   profile.Weight,
		"timeout":  profile.Timeout,
	}).Info("provider registered")
}

// Provider returns the provider for an id, if registered.
func (r *Registry) Provider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Profile returns the profile for an id, if registered.
func (r *Registry) Profile(id string) (models.ProviderProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prof, ok := r.profiles[id]
	return prof, ok
}

// Profiles returns all registered profiles sorted by id. Sorting keeps
// fan-out order, and therefore result order, stable across requests.
func (r *Registry) Profiles() []models.ProviderProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ProviderProfile, 0, len(r.profiles))
	for _, prof := range r.profiles {
		out = append(out, prof)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EnabledProfiles returns the profiles eligible for a fan-out: selected
// (or all, when selected is empty), minus providers in cool-down.
func (r *Registry) EnabledProfiles(selected []string) []models.ProviderProfile {
	all := r.Profiles()
	if len(selected) > 0 {
		wanted := make(map[string]bool, len(selected))
		for _, id := range selected {
			wanted[id] = true
		}
		filtered := all[:0]
		for _, prof := range all {
			if wanted[prof.ID] {
				filtered = append(filtered, prof)
			}
		}
		all = filtered
	}
	out := make([]models.ProviderProfile, 0, len(all))
	for _, prof := range all {
		if r.cooldowns.Degraded(prof.ID) {
			r.log.WithField("provider", prof.ID).Debug("skipping degraded provider")
			continue
		}
		out = append(out, prof)
	}
	return out
}

// Degraded reports whether a provider is currently in cool-down.
func (r *Registry) Degraded(id string) bool {
	return r.cooldowns.Degraded(id)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Observe feeds one call outcome into the cool-down bookkeeping.
func (r *Registry) Observe(res *models.CallResult) {
	if res == nil {
		return
	}
	if res.OK() {
		r.cooldowns.MarkSuccess(res.ProviderID)
		return
	}
	if r.cooldowns.MarkFailure(res.ProviderID, res.Failure.Kind) {
		r.log.WithFields(logrus.Fields{
			"provider": res.ProviderID,
			"kind":     res.Failure.Kind,
		}).Warn("provider marked degraded")
	}
}
