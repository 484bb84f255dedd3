package gemini

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
		ProviderID: "gemini",
		Prompt: models.RenderedPrompt{
			System: "stay factual",
			Messages: []models.Message{
				{Role: "user", Content: "question"},
				{Role: "assistant", Content: "previous answer"},
				{Role: "user", Content: "follow-up"},
			},
		},
		MaxTokens: 100,
	}
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "the-key", r.URL.Query().Get("key"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "stay factual", req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 3)
		// Assistant turns are renamed to Gemini's "model" role.
		assert.Equal(t, "model", req.Contents[1].Role)

		json.NewEncoder(w).Encode(apiResponse{
			Candidates: []apiCandidate{{
				Content:      apiContent{Parts: []apiPart{{Text: "part one "}, {Text: "part two"}}},
				FinishReason: "STOP",
			}},
			UsageMeta: &usageMetadata{CandidatesTokenCount: 7},
		})
	}))
	defer srv.Close()

	a := New("gemini", "the-key", srv.URL, "gemini-test", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.True(t, res.OK())
	// Multi-part candidates are concatenated.
	assert.Equal(t, "part one part two", res.Content)
	assert.Equal(t, 7, res.TokensUsed)
}

func TestCallNoCandidatesIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer srv.Close()

	a := New("gemini", "key", srv.URL, "gemini-test", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.False(t, res.OK())
	assert.Equal(t, models.FailureMalformed, res.Failure.Kind)
}

func TestCallServerErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New("gemini", "key", srv.URL, "gemini-test", time.Second, 0)
	res := a.Call(context.Background(), testRequest())

	require.False(t, res.OK())
	assert.Equal(t, models.FailureTransport, res.Failure.Kind)
}
