package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tenk/internal/core/ports/driven"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Be terse.", req.Messages[0].Content)
		assert.Equal(t, "What was revenue?", req.Messages[1].Content)
		assert.Equal(t, 256, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: "$383B"}, Done: true})
	}))
	defer srv.Close()

	s := NewLLMService(LLMConfig{BaseURL: srv.URL})
	out, err := s.Complete(context.Background(), "What was revenue?", driven.CompletionOptions{System: "Be terse.", MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "$383B", out)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
}

func TestComplete_NoSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "ok"}})
	}))
	defer srv.Close()

	out, err := NewLLMService(LLMConfig{BaseURL: srv.URL}).Complete(context.Background(), "hi", driven.CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestComplete_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: srv.URL}).Complete(context.Background(), "hi", driven.CompletionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
