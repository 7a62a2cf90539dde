package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedpilot/pkg/logx"
)

// ErrEmptyResponse indicates the provider returned no usable text.
var ErrEmptyResponse = errors.New("empty response from provider")

// WithTimeout bounds every Complete call with a deadline. This is the only
// true timeout in the pipeline; callers treat expiry like any provider error.
func WithTimeout(timeout time.Duration) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				callCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				resp, err := next.Complete(callCtx, req)
				if err != nil {
					if callCtx.Err() == context.DeadlineExceeded {
						return CompletionResponse{}, fmt.Errorf("generation timed out after %s: %w", timeout, err)
					}
					return resp, err
				}
				return resp, nil
			},
			next.ModelName,
		)
	}
}

// WithValidation rejects whitespace-only responses so callers downstream can
// rely on non-empty content.
func WithValidation() Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err != nil {
					return resp, err
				}
				if strings.TrimSpace(resp.Content) == "" {
					return CompletionResponse{}, ErrEmptyResponse
				}
				return resp, nil
			},
			next.ModelName,
		)
	}
}

// WithLogging logs call durations and failures at debug level.
func WithLogging(logger *logx.Logger) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				elapsed := time.Since(start)

				if err != nil {
					logger.Debug("provider %s failed after %s: %v", next.ModelName(), elapsed, err)
					return resp, err
				}
				logger.Debug("provider %s returned %d chars in %s", next.ModelName(), len(resp.Content), elapsed)
				return resp, nil
			},
			next.ModelName,
		)
	}
}

// CallRecorder receives one observation per provider call.
type CallRecorder interface {
	RecordProviderCall(model string, duration time.Duration, err error)
}

// WithMetrics records every call against the recorder.
func WithMetrics(recorder CallRecorder) Middleware {
	return func(next Client) Client {
		return WrapClient(
			func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				recorder.RecordProviderCall(next.ModelName(), time.Since(start), err)
				return resp, err
			},
			next.ModelName,
		)
	}
}
