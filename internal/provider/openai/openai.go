// Package openai adapts OpenAI-style chat-completion APIs to the
// uniform provider contract. xAI and Mistral expose the same wire
// format, so one adapter with a vendor base URL serves all three.
package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

const defaultBaseURL = "https://api.openai.com/v1"

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
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	Messages    []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
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

	messages := make([]apiMessage, 0, len(req.Prompt.Messages)+1)
	if req.Prompt.System != "" {
		messages = append(messages, apiMessage{Role: "system", Content: req.Prompt.System})
	}
	for _, m := range req.Prompt.Messages {
		messages = append(messages, apiMessage{Role: m.Role, Content: m.Content})
	}

	body, failure := provider.PostJSON(callCtx, a.client, a.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + a.apiKey,
	}, apiRequest{
		Model:       a.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    messages,
	}, a.policy)
	if failure != nil {
		return &models.CallResult{ProviderID: a.id, Failure: failure, LatencyMs: time.Since(start).Milliseconds()}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Fail(a.id, models.FailureMalformed, "parse response: "+err.Error(), time.Since(start))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return models.Fail(a.id, models.FailureMalformed, "no choices in response", time.Since(start))
	}

	choice := resp.Choices[0]
	return &models.CallResult{
		ProviderID: a.id,
		Content:    choice.Message.Content,
		Confidence: confidence(choice.Message.Content, choice.FinishReason),
		TokensUsed: resp.Usage.CompletionTokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

func confidence(content, finishReason string) float64 {
	c := 0.85
	switch finishReason {
	case "stop":
		c += 0.05
	case "length":
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
