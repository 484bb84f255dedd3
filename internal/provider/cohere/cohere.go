// Package cohere adapts the Cohere chat API to the uniform provider
// contract.
package cohere

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

const defaultBaseURL = "https://api.cohere.com/v1"

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
	Message     string       `json:"message"`
	Preamble    string       `json:"preamble,omitempty"`
	ChatHistory []apiHistory `json:"chat_history,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

type apiHistory struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type apiResponse struct {
	Text         string   `json:"text"`
	FinishReason string   `json:"finish_reason"`
	Meta         *apiMeta `json:"meta"`
}

type apiMeta struct {
	BilledUnits struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"billed_units"`
}

func New(id, apiKey, baseURL, model string, timeout time.Duration, maxRetries int) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		id:      id,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
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

	// Cohere takes the latest user message separately from history.
	var message string
	history := make([]apiHistory, 0, len(req.Prompt.Messages))
	for i, m := range req.Prompt.Messages {
		if i == len(req.Prompt.Messages)-1 && m.Role == "user" {
			message = m.Content
			continue
		}
		role := "USER"
		if m.Role == "assistant" {
			role = "CHATBOT"
		}
		history = append(history, apiHistory{Role: role, Message: m.Content})
	}
	if message == "" {
		return models.Fail(a.id, models.FailureMalformed, "prompt has no trailing user message", time.Since(start))
	}

	body, failure := provider.PostJSON(callCtx, a.client, a.baseURL+"/chat", map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}, apiRequest{
		Model:       a.model,
		Message:     message,
		Preamble:    req.Prompt.System,
		ChatHistory: history,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, a.policy)
	if failure != nil {
		return &models.CallResult{ProviderID: a.id, Failure: failure, LatencyMs: time.Since(start).Milliseconds()}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Fail(a.id, models.FailureMalformed, "parse response: "+err.Error(), time.Since(start))
	}
	if resp.Text == "" {
		return models.Fail(a.id, models.FailureMalformed, "empty text in response", time.Since(start))
	}

	tokens := 0
	if resp.Meta != nil {
		tokens = resp.Meta.BilledUnits.OutputTokens
	}

	return &models.CallResult{
		ProviderID: a.id,
		Content:    resp.Text,
		Confidence: confidence(resp.Text, resp.FinishReason),
		TokensUsed: tokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

func confidence(content, finishReason string) float64 {
	c := 0.8
	switch finishReason {
	case "COMPLETE":
		c += 0.05
	case "MAX_TOKENS":
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
