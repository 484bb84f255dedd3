package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumai/quorum/internal/models"
)

func testRequest() *models.CallRequest {
	return &models.CallRequest{
		ID:         "req-1",
		ProviderID: "gpt4o",
		Prompt: models.RenderedPrompt{
			System:   "be brief",
			Messages: []models.Message{{Role: "user", Content: "hello"}},
		},
		MaxTokens:   100,
		Temperature: 0.7,
	}
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key-456", r.Header.Get("Authorization"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// The system prompt travels as the first message.
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)

		json.NewEncoder(w).Encode(apiResponse{
			ID: "chatcmpl-1",
			Choices: []apiChoice{{
				Message:      apiMessage{Role: "assistant", Content: "Hi."},
				FinishReason: "stop",
			}},
			Usage: apiUsage{CompletionTokens: 3},
		})
	}))
	defer srv.Close()

	a := New("gpt4o", "key-456", srv.URL, "gpt-4o", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, "Hi.", res.Content)
	assert.Equal(t, 3, res.TokensUsed)
}

// The same adapter serves any OpenAI-compatible endpoint through its
// base URL, which is how xAI and Mistral are wired.
func TestCallCompatibleBaseURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(apiResponse{
			Choices: []apiChoice{{Message: apiMessage{Content: "grok says hi"}, FinishReason: "stop"}},
		})
	}))
	defer srv.Close()

	a := New("grok", "xai-key", srv.URL+"/v1/", "grok-test", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, "/v1/chat/completions", gotPath)
}

func TestCallRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New("gpt4o", "key", srv.URL, "gpt-4o", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.False(t, res.OK())
	assert.Equal(t, models.FailureRateLimited, res.Failure.Kind)
}

func TestCallNoChoicesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{ID: "chatcmpl-1"})
	}))
	defer srv.Close()

	a := New("gpt4o", "key", srv.URL, "gpt-4o", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.False(t, res.OK())
	assert.Equal(t, models.FailureMalformed, res.Failure.Kind)
}
