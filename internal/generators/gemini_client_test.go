package generators

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyteller/server/internal/config"
	"storyteller/server/internal/models"
)

func newGeminiTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGeminiClient(config.GeminiConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, zap.NewNop())
}

func TestGeminiGenerate(t *testing.T) {
	t.Run("returns candidate text", func(t *testing.T) {
		var gotPath, gotKey string
		var gotReq generateContentRequest

		client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotKey = r.Header.Get("x-goog-api-key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			json.NewEncoder(w).Encode(generateContentResponse{
				Candidates: []candidate{{
					Content: content{Parts: []part{
						{Text: "Once upon a time... "},
						{Text: "[Choice 1: Fly to the moon]"},
					}},
				}},
			})
		})

		text, err := client.Generate(context.Background(), "tell a story")
		require.NoError(t, err)
		assert.Equal(t, "Once upon a time... [Choice 1: Fly to the moon]", text)

		assert.Equal(t, "/models/gemini-pro:generateContent", gotPath)
		assert.Equal(t, "test-key", gotKey)
		require.Len(t, gotReq.Contents, 1)
		assert.Equal(t, "tell a story", gotReq.Contents[0].Parts[0].Text)
		assert.Len(t, gotReq.SafetySettings, 4)
		assert.Equal(t, 512, gotReq.GenerationConfig.MaxOutputTokens)
	})

	t.Run("not configured fails before any network call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request on unconfigured client")
		}))
		defer srv.Close()

		client := NewGeminiClient(config.GeminiConfig{BaseURL: srv.URL}, zap.NewNop())
		assert.False(t, client.Configured())

		_, err := client.Generate(context.Background(), "tell a story")
		assert.ErrorIs(t, err, models.ErrNotConfigured)
	})

	t.Run("empty prompt fails before any network call", func(t *testing.T) {
		client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request for empty prompt")
		})

		_, err := client.Generate(context.Background(), "   ")
		assert.ErrorIs(t, err, models.ErrEmptyInput)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(generateContentResponse{
				PromptFeedback: &promptFeedback{BlockReason: "SAFETY"},
			})
		})

		_, err := client.Generate(context.Background(), "something")
		require.ErrorIs(t, err, models.ErrBlocked)
		assert.Contains(t, err.Error(), "SAFETY")
	})

	t.Run("empty candidates", func(t *testing.T) {
		client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(generateContentResponse{})
		})

		_, err := client.Generate(context.Background(), "something")
		assert.ErrorIs(t, err, models.ErrEmptyResponse)
	})

	t.Run("upstream error surfaces status and message", func(t *testing.T) {
		client := newGeminiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(generateContentResponse{
				Error: &geminiAPIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"},
			})
		})

		_, err := client.Generate(context.Background(), "something")
		require.ErrorIs(t, err, models.ErrUpstream)
		assert.Contains(t, err.Error(), "HTTP 429")
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}
