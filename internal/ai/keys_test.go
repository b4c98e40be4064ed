package ai_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tutorbot/tutorbot/internal/ai"
)

func geminiQuotaError() error {
	return genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "You exceeded your current quota. Please retry in 30s.",
	}
}

func TestKeyRing_FullRotationReturnsToStart(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("gemini", []string{"k1", "k2", "k3"}, discardLogger())
	require.Equal(t, 0, ring.Current())

	var slots []int
	var keys []string
	err := ring.Do(context.Background(), func(_ context.Context, slot int, key string) error {
		slots = append(slots, slot)
		keys = append(keys, key)
		return geminiQuotaError()
	})

	require.ErrorIs(t, err, ai.ErrKeysExhausted)
	assert.ErrorIs(t, err, ai.ErrRateLimited)
	assert.Equal(t, []int{0, 1, 2}, slots)
	assert.Equal(t, []string{"k1", "k2", "k3"}, keys)
	assert.Equal(t, 0, ring.Current())

	retryAfter, ok := ai.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, retryAfter)
}

func TestKeyRing_RotatesToNextKeyOnRateLimit(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("groq", []string{"a", "b", "c"}, discardLogger())

	attempts := 0
	err := ring.Do(context.Background(), func(_ context.Context, slot int, _ string) error {
		attempts++
		if slot == 0 {
			return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "Rate limit reached. Please try again in 7m12s."}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, ring.Current())

	// The next request starts from the key that worked.
	var first int
	require.NoError(t, ring.Do(context.Background(), func(_ context.Context, slot int, _ string) error {
		first = slot
		return nil
	}))
	assert.Equal(t, 1, first)
}

func TestKeyRing_OtherErrorsFailFast(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("gemini", []string{"k1", "k2"}, discardLogger())
	boom := errors.New("connection reset")

	attempts := 0
	err := ring.Do(context.Background(), func(context.Context, int, string) error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ai.ErrKeysExhausted)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, ring.Current())
}

func TestKeyRing_ModelNotFound(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("groq", []string{"k1", "k2"}, discardLogger())
	err := ring.Do(context.Background(), func(context.Context, int, string) error {
		return &openai.APIError{
			HTTPStatusCode: http.StatusNotFound,
			Code:           "model_not_found",
			Message:        "The model `llama-vision` does not exist",
		}
	})

	assert.ErrorIs(t, err, ai.ErrModelNotFound)
}

func TestKeyRing_NoKeys(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("gemini", []string{" ", ""}, discardLogger())
	assert.Equal(t, 0, ring.Len())

	err := ring.Do(context.Background(), func(context.Context, int, string) error { return nil })
	assert.ErrorIs(t, err, ai.ErrUnavailable)
}

func TestNewKeyRing_DropsBlanksAndDuplicates(t *testing.T) {
	t.Parallel()

	ring := ai.NewKeyRing("gemini", []string{" k1 ", "k2", "k1", ""}, discardLogger())
	assert.Equal(t, []string{"k1", "k2"}, ring.Keys())
}
