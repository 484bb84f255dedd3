// Package gemini adapts the Google Gemini generateContent API to the
// uniform provider contract.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quorumai/quorum/internal/models"
	"github.com/quorumai/quorum/internal/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

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
	Contents          []apiContent      `json:"contents"`
	SystemInstruction *apiContent       `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type apiResponse struct {
	Candidates []apiCandidate `json:"candidates"`
	UsageMeta  *usageMetadata `json:"usageMetadata"`
}

type apiCandidate struct {
	Content      apiContent `json:"content"`
	FinishReason string     `json:"finishReason"`
}

type usageMetadata struct {
	CandidatesTokenCount int `json:"candidatesTokenCount"`
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

	contents := make([]apiContent, 0, len(req.Prompt.Messages))
	for _, m := range req.Prompt.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, apiContent{Role: role, Parts: []apiPart{{Text: m.Content}}})
	}

	payload := apiRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.Prompt.System != "" {
		payload.SystemInstruction = &apiContent{Parts: []apiPart{{Text: req.Prompt.System}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	body, failure := provider.PostJSON(callCtx, a.client, url, nil, payload, a.policy)
	if failure != nil {
		return &models.CallResult{ProviderID: a.id, Failure: failure, LatencyMs: time.Since(start).Milliseconds()}
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Fail(a.id, models.FailureMalformed, "parse response: "+err.Error(), time.Since(start))
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.Fail(a.id, models.FailureMalformed, "no candidates in response", time.Since(start))
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	content := sb.String()
	if content == "" {
		return models.Fail(a.id, models.FailureMalformed, "empty candidate content", time.Since(start))
	}

	tokens := 0
	if resp.UsageMeta != nil {
		tokens = resp.UsageMeta.CandidatesTokenCount
	}

	return &models.CallResult{
		ProviderID: a.id,
		Content:    content,
		Confidence: confidence(content, candidate.FinishReason),
		TokensUsed: tokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
}

func confidence(content, finishReason string) float64 {
	c := 0.85
	switch finishReason {
	case "STOP":
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
