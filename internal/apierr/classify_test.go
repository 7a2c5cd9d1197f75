package apierr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-vidindex/internal/apierr"
)

// ---------------------------------------------------------------------------
// TestFromOpenAI - HTTP status to sentinel mapping
// ---------------------------------------------------------------------------

func TestFromOpenAI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"429 rate limit", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, apierr.ErrRateLimit},
		{"429 quota", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "You exceeded your current quota"}, apierr.ErrQuotaExceeded},
		{"429 billing", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "billing hard limit"}, apierr.ErrQuotaExceeded},
		{"401", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}, apierr.ErrAuthFailed},
		{"408", &openai.APIError{HTTPStatusCode: http.StatusRequestTimeout}, apierr.ErrTimeout},
		{"503", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, apierr.ErrTimeout},
		{"400", &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "too long"}, apierr.ErrBadRequest},
		{"request error 502", &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}, apierr.ErrTimeout},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), apierr.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := apierr.FromOpenAI(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("FromOpenAI() = %v, want wrapping %v", got, tt.want)
			}
		})
	}

	t.Run("unknown error unchanged", func(t *testing.T) {
		t.Parallel()

		in := errors.New("connection reset")
		if got := apierr.FromOpenAI(in); got != in {
			t.Errorf("FromOpenAI() = %v, want input unchanged", got)
		}
	})

	t.Run("nil stays nil", func(t *testing.T) {
		t.Parallel()

		if got := apierr.FromOpenAI(nil); got != nil {
			t.Errorf("FromOpenAI(nil) = %v, want nil", got)
		}
	})
}

func TestFromStatus(t *testing.T) {
	t.Parallel()

	if err := apierr.FromStatus(http.StatusTeapot, "teapot"); err != nil {
		t.Errorf("FromStatus(418) = %v, want nil", err)
	}
	if err := apierr.FromStatus(http.StatusUnauthorized, "no"); !errors.Is(err, apierr.ErrAuthFailed) {
		t.Errorf("FromStatus(401) = %v, want ErrAuthFailed", err)
	}
}

// ---------------------------------------------------------------------------
// TestIsRetryable - transient vs permanent classification
// ---------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", fmt.Errorf("x: %w", apierr.ErrRateLimit), true},
		{"timeout", fmt.Errorf("x: %w", apierr.ErrTimeout), true},
		{"quota", apierr.ErrQuotaExceeded},
		{"auth", apierr.ErrAuthFailed},
		{"bad request", apierr.ErrBadRequest},
		{"canceled", context.Canceled, false},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := apierr.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSentinelErrorDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		apierr.ErrRateLimit,
		apierr.ErrQuotaExceeded,
		apierr.ErrTimeout,
		apierr.ErrAuthFailed,
		apierr.ErrBadRequest,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors.Is(%v, %v) = true, want false", a, b)
			}
		}
	}
}
