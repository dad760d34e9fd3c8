package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

type stubEmbedder struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (s *stubEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int            { return 2 }
func (s *stubEmbedder) ModelName() string          { return "stub" }
func (s *stubEmbedder) Ping(context.Context) error { return nil }
func (s *stubEmbedder) Close() error               { return nil }

type stubLLM struct {
	err error
}

func (s *stubLLM) Complete(context.Context, string, driven.CompletionOptions) (string, error) {
	return "answer", s.err
}
func (s *stubLLM) ModelName() string          { return "stub-llm" }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error               { return nil }

func TestEmbedding_PassThrough(t *testing.T) {
	inner := &stubEmbedder{}
	svc := Embedding(inner, Options{Timeout: time.Second, RatePerSecond: 100, Failures: 3, Cooldown: time.Second})

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, svc.Dimensions())
	assert.Equal(t, "stub", svc.ModelName())
}

func TestEmbedding_Timeout(t *testing.T) {
	inner := &stubEmbedder{delay: time.Second}
	svc := Embedding(inner, Options{Timeout: 20 * time.Millisecond})

	_, err := svc.Embed(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEmbedding_BreakerOpens(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("503")}
	svc := Embedding(inner, Options{Failures: 2, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Embed(ctx, "x")
		require.Error(t, err)
	}
	_, err := svc.Embed(ctx, "x")
	assert.True(t, errors.Is(err, ErrBreakerOpen))
	assert.Equal(t, int32(2), inner.calls.Load(), "open breaker must not reach the provider")
}

func TestEmbedding_CancelDoesNotTrip(t *testing.T) {
	inner := &stubEmbedder{err: context.Canceled}
	svc := Embedding(inner, Options{Failures: 1, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := svc.Embed(context.Background(), "x")
		assert.True(t, errors.Is(err, context.Canceled))
	}
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestEmbedding_RateLimitHonoursContext(t *testing.T) {
	svc := Embedding(&stubEmbedder{}, Options{RatePerSecond: 0.001})
	ctx := context.Background()

	_, err := svc.Embed(ctx, "first")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = svc.Embed(short, "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestLLM_Guarded(t *testing.T) {
	svc := LLM(&stubLLM{}, Options{Timeout: time.Second})
	out, err := svc.Complete(context.Background(), "q", driven.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, "stub-llm", svc.ModelName())

	failing := LLM(&stubLLM{err: errors.New("boom")}, Options{Failures: 1, Cooldown: time.Minute})
	_, err = failing.Complete(context.Background(), "q", driven.CompletionOptions{})
	require.Error(t, err)
	_, err = failing.Complete(context.Background(), "q", driven.CompletionOptions{})
	assert.True(t, errors.Is(err, ErrBreakerOpen))
}
