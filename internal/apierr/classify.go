package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// FromOpenAI maps a go-openai error to the sentinel matching its HTTP status.
// Unrecognized errors are returned unchanged.
func FromOpenAI(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if sentinel := fromStatus(apiErr.HTTPStatusCode, apiErr.Message); sentinel != nil {
			return fmt.Errorf("%s: %w", apiErr.Message, sentinel)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if sentinel := fromStatus(reqErr.HTTPStatusCode, reqErr.Error()); sentinel != nil {
			return fmt.Errorf("%s: %w", reqErr.Error(), sentinel)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}
	return err
}

// FromStatus classifies a raw HTTP status, for clients that do not use go-openai.
// It returns nil for statuses with no sentinel.
func FromStatus(status int, msg string) error {
	sentinel := fromStatus(status, msg)
	if sentinel == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}

func fromStatus(status int, msg string) error {
	switch status {
	case http.StatusTooManyRequests:
		// Quota exhaustion needs user action; rate limits pass with time.
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			return ErrQuotaExceeded
		}
		return ErrRateLimit
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrTimeout
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrBadRequest
	}
	return nil
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRateLimit), errors.Is(err, ErrTimeout):
		return true
	}
	return false
}
