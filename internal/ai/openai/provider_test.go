package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/pulsehound/internal/ai"
	"github.com/kiranshivaraju/pulsehound/internal/config"
)

func TestAnalyze_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Root cause: pool exhaustion."}}]}`))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4"})
	got, err := p.Analyze(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Root cause: pool exhaustion.", got)
}

func TestAnalyze_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4"})
	_, err := p.Analyze(context.Background(), "prompt")
	require.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestAnalyze_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewProvider(config.OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4"})
	_, err := p.Analyze(context.Background(), "prompt")
	require.ErrorIs(t, err, ai.ErrInvalidResponse)
}
