package factory

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumai/quorum/internal/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testConfig(providers map[string]config.ProviderConfig) *config.Config {
	return &config.Config{
		Providers: providers,
		Ensemble:  config.EnsembleConfig{CooldownWindow: time.Minute},
	}
}

func TestBuildSkipsProvidersWithoutCredentials(t *testing.T) {
	cfg := testConfig(map[string]config.ProviderConfig{
		"claude": {Type: config.ProviderAnthropic, APIKey: "set", Model: "claude-test", Timeout: time.Second, Weight: 1.0},
		"gpt4o":  {Type: config.ProviderOpenAI, APIKey: "", Model: "gpt-test", Timeout: time.Second, Weight: 1.0},
	})

	reg := Build(cfg, quietLogger())

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Provider("claude")
	assert.True(t, ok)
	_, ok = reg.Provider("gpt4o")
	assert.False(t, ok)
}

func TestBuildAllVendorTypes(t *testing.T) {
	cfg := testConfig(map[string]config.ProviderConfig{
		"claude":  {Type: config.ProviderAnthropic, APIKey: "k", Timeout: time.Second, Weight: 1.0},
		"gpt4o":   {Type: config.ProviderOpenAI, APIKey: "k", Timeout: time.Second, Weight: 1.0},
		"gemini":  {Type: config.ProviderGemini, APIKey: "k", Timeout: time.Second, Weight: 1.0},
		"cohere":  {Type: config.ProviderCohere, APIKey: "k", Timeout: time.Second, Weight: 0.8},
		"unknown": {Type: "exotic", APIKey: "k", Timeout: time.Second, Weight: 1.0},
	})

	reg := Build(cfg, quietLogger())

	assert.Equal(t, 4, reg.Len())
	_, ok := reg.Provider("unknown")
	assert.False(t, ok)
}

func TestBuildCarriesProfileFields(t *testing.T) {
	cfg := testConfig(map[string]config.ProviderConfig{
		"claude": {
			Type: config.ProviderAnthropic, Name: "Claude", APIKey: "k",
			Model: "claude-test", Timeout: 25 * time.Second, MaxRetries: 1, Weight: 0.9,
		},
	})

	reg := Build(cfg, quietLogger())

	prof, ok := reg.Profile("claude")
	require.True(t, ok)
	assert.Equal(t, "Claude", prof.Name)
	assert.Equal(t, 25*time.Second, prof.Timeout)
	assert.Equal(t, 1, prof.MaxRetries)
	assert.Equal(t, 0.9, prof.Weight)
}

func TestBuildEmptyConfig(t *testing.T) {
	reg := Build(testConfig(nil), quietLogger())
	assert.Equal(t, 0, reg.Len())
}
