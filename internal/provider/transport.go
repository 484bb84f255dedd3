package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/quorumai/quorum/internal/models"
)

// RetryPolicy controls the single optional retry on retryable statuses.
// Profiles allow at most one retry; anything beyond that belongs to the
// caller, not the adapter.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	JitterFactor float64
}

// DefaultRetryPolicy returns the standard adapter retry behavior.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	if maxRetries > 1 {
		maxRetries = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: 500 * time.Millisecond,
		JitterFactor: 0.1,
	}
}

// IsRetryableStatus reports whether an HTTP status warrants the retry.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP error status to a failure kind.
func ClassifyStatus(statusCode int) models.FailureKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.FailureAuth
	case statusCode == http.StatusTooManyRequests:
		return models.FailureRateLimited
	case statusCode >= 500:
		return models.FailureTransport
	default:
		return models.FailureMalformed
	}
}

// ClassifyError maps a transport-level error to a failure kind.
func ClassifyError(err error) models.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.FailureTimeout
	}
	return models.FailureTransport
}

// PostJSON executes a JSON POST with the adapter's timeout budget and
// retry policy, returning the decoded body on 2xx or a classified
// failure otherwise. It never panics and never lets a vendor error
// escape unclassified.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, policy RetryPolicy) ([]byte, *models.CallFailure) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &models.CallFailure{Kind: models.FailureMalformed, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	delay := policy.InitialDelay
	var lastFailure *models.CallFailure

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, &models.CallFailure{Kind: ClassifyError(ctx.Err()), Message: ctx.Err().Error()}
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, &models.CallFailure{Kind: models.FailureTransport, Message: err.Error()}
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastFailure = &models.CallFailure{Kind: ClassifyError(err), Message: err.Error()}
			if lastFailure.Kind == models.FailureTimeout {
				return nil, lastFailure
			}
			if attempt < policy.MaxRetries {
				waitWithJitter(ctx, delay, policy.JitterFactor)
				delay *= 2
				continue
			}
			return nil, lastFailure
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, &models.CallFailure{Kind: models.FailureTransport, Message: readErr.Error()}
			}
			return respBody, nil
		}

		kind := ClassifyStatus(resp.StatusCode)
		lastFailure = &models.CallFailure{
			Kind:    kind,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
		if IsRetryableStatus(resp.StatusCode) && attempt < policy.MaxRetries {
			waitWithJitter(ctx, delay, policy.JitterFactor)
			delay *= 2
			continue
		}
		return nil, lastFailure
	}

	return nil, lastFailure
}

// waitWithJitter sleeps for delay plus a small random jitter, bailing
// out early when the context is done.
func waitWithJitter(ctx context.Context, delay time.Duration, jitterFactor float64) {
	jitter := time.Duration(rand.Float64() * jitterFactor * float64(delay))
	select {
	case <-ctx.Done():
	case <-time.After(delay + jitter):
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
