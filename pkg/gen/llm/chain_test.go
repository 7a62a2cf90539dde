package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpilot/pkg/logx"
)

type stubClient struct {
	complete func(context.Context, CompletionRequest) (CompletionResponse, error)
}

func (s *stubClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return s.complete(ctx, req)
}

func (s *stubClient) ModelName() string { return "stub-model" }

func TestChainOrdering(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Client) Client {
			return WrapClient(
				func(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
					order = append(order, name)
					return next.Complete(ctx, req)
				},
				next.ModelName,
			)
		}
	}
	base := &stubClient{complete: func(context.Context, CompletionRequest) (CompletionResponse, error) {
		order = append(order, "base")
		return CompletionResponse{Content: "ok"}, nil
	}}

	client := Chain(base, tag("outer"), tag("inner"))
	_, err := client.Complete(context.Background(), CompletionRequest{})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
	assert.Equal(t, "stub-model", client.ModelName())
}

func TestWithTimeoutExpires(t *testing.T) {
	base := &stubClient{complete: func(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
		<-ctx.Done()
		return CompletionResponse{}, ctx.Err()
	}}

	client := Chain(base, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "timed out")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	base := &stubClient{complete: func(context.Context, CompletionRequest) (CompletionResponse, error) {
		return CompletionResponse{Content: "fast"}, nil
	}}

	resp, err := Chain(base, WithTimeout(time.Second)).Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Content)
}

func TestWithValidationRejectsEmpty(t *testing.T) {
	base := &stubClient{complete: func(context.Context, CompletionRequest) (CompletionResponse, error) {
		return CompletionResponse{Content: "   \n\t"}, nil
	}}

	_, err := Chain(base, WithValidation()).Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestWithValidationPreservesErrors(t *testing.T) {
	boom := errors.New("boom")
	base := &stubClient{complete: func(context.Context, CompletionRequest) (CompletionResponse, error) {
		return CompletionResponse{}, boom
	}}

	_, err := Chain(base, WithValidation()).Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, boom)
}

type countingRecorder struct {
	calls  int
	failed int
}

func (c *countingRecorder) RecordProviderCall(_ string, _ time.Duration, err error) {
	c.calls++
	if err != nil {
		c.failed++
	}
}

func TestWithMetricsRecordsOutcomes(t *testing.T) {
	fail := errors.New("provider down")
	calls := 0
	base := &stubClient{complete: func(context.Context, CompletionRequest) (CompletionResponse, error) {
		calls++
		if calls == 1 {
			return CompletionResponse{}, fail
		}
		return CompletionResponse{Content: "ok"}, nil
	}}

	recorder := &countingRecorder{}
	client := Chain(base, WithMetrics(recorder), WithLogging(logx.NewLogger("test")))

	_, err := client.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	_, err = client.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, recorder.calls)
	assert.Equal(t, 1, recorder.failed)
}
