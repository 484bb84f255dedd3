// Package anthropic adapts the Anthropic messages API to the uniform
// provider contract.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1/messages"
	apiVersion     = "2023-06-01"
)

type Adapter struct {
	id      string
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	policy  provider.RetryPolicy
}

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature,omitempty"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID         string       `json:"id"`
	Content    []apiContent `json:"content"`
	Model      string       `json:"model"`
	StopReason *string      `json:"stop_reason"`
	Usage      apiUsage     `json:"usage"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// New creates an Anthropic adapter. The timeout is the adapter's own
// hard per-call budget; the scheduler's ceiling is only a safety net.
func New(id, apiKey, baseURL, model string, timeout time.Duration, maxRetries int) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		policy:  provider.DefaultRetryPolicy(maxRetries),
	}
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) Call(ctx context.Context, req *models.CallRequest) *models.CallResult {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]apiMessage, 0, len(req.Prompt.Messages))
	for _, m := range req.Prompt.Messages {
		if m.Role == "system" {
			continue
		}
		messages = append(messages, apiMessage{Role: m.Role, Content: m.Content})
	}

	body, failure := provider.PostJSON(callCtx, a.client, a.baseURL, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": apiVersion,
	}, apiRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.Prompt.System,
		Messages:    messages,
	}, a.policy)
	if failure != nil {
		return &models.CallResult{ProviderID: a.id, Failure: failure, LatencyMs: time.Since(start).Milliseconds()}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Fail(a.id, models.FailureMalformed, "parse response: "+err.Error(), time.Since(start))
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		return models.Fail(a.id, models.FailureMalformed, "empty content in response", time.Since(start))
	}

	content := resp.Content[0].Text
	finishReason := ""
	if resp.StopReason != nil {
		finishReason = *resp.StopReason
	}

	return &models.CallResult{
		ProviderID: a.id,
		Content:    content,
		Confidence: confidence(content, finishReason),
		TokensUsed: resp.Usage.OutputTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

// confidence estimates response quality from the finish reason and
// content length. Deterministic: the same response always scores the
// same.
func confidence(content, finishReason string) float64 {
	c := 0.9
	switch finishReason {
	case "end_turn":
		c += 0.05
	case "max_tokens":
		c -= 0.1
	}
	if len(content) > 50 {
		c += 0.02
	}
	if len(content) > 200 {
		c += 0.02
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}
