// Package factory builds a provider registry from static configuration.
package factory

import (
	"github.com/sirupsen/logrus"

	"github.com/quorumai/quorum/internal/config"
	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
	"github.com/quorumai/quorum/internal/provider/anthropic"
	"github.com/quorumai/quorum/internal/provider/cohere"
	"github.com/quorumai/quorum/internal/provider/gemini"
	"github.com/quorumai/quorum/internal/provider/openai"
)

// Build constructs adapters for every provider that has credentials.
// Providers without an API key are skipped entirely: they are never
// attempted and never appear in a batch's attempted count.
func Build(cfg *config.Config, log *logrus.Logger) *provider.Registry {
	if log == nil {
		log = logrus.New()
	}
	reg := provider.NewRegistry(cfg.Ensemble.CooldownWindow, log)

	for id, pc := range cfg.Providers {
		if pc.APIKey == "" {
			log.WithField("provider", id).Info("no credentials, provider skipped")
			continue
		}

		var p provider.Provider
		switch pc.Type {
		case config.ProviderAnthropic:
			p = anthropic.New(id, pc.APIKey, pc.BaseURL, pc.Model, pc.Timeout, pc.MaxRetries)
		case config.ProviderOpenAI:
			p = openai.New(id, pc.APIKey, pc.BaseURL, pc.Model, pc.Timeout, pc.MaxRetries)
		case config.ProviderGemini:
			p = gemini.New(id, pc.APIKey, pc.BaseURL, pc.Model, pc.Timeout, pc.MaxRetries)
		case config.ProviderCohere:
			p = cohere.New(id, pc.APIKey, pc.BaseURL, pc.Model, pc.Timeout, pc.MaxRetries)
		default:
			log.WithFields(logrus.Fields{
				"provider": id,
				"type":     pc.Type,
			}).Warn("unknown provider type, skipped")
			continue
		}

		reg.Register(models.ProviderProfile{
			ID:         id,
			Name:       pc.Name,
			Capability: models.CapabilityChat,
			Timeout:    pc.Timeout,
			MaxRetries: pc.MaxRetries,
			Weight:     pc.Weight,
		}, p)
	}

	return reg
}
