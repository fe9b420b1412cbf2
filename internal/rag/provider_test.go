package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) OpenAIOptions {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNewOpenAIEmbedder_WithoutKeyIsNoop(t *testing.T) {
	emb := NewOpenAIEmbedder(OpenAIOptions{})
	assert.False(t, emb.Ready())

	_, err := emb.Embed(context.Background(), "hi")
	assert.True(t, apperrors.IsProviderError(err))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	opts := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	})

	emb := NewOpenAIEmbedder(opts)
	require.True(t, emb.Ready())
	assert.Equal(t, 1536, emb.Dimensions())

	vec, err := emb.Embed(context.Background(), "reset password")
	require.NoError(t, err)
	assert.Equal(t, EmbeddingVector{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIEmbedder_ErrorsAreProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"error": map[string]interface{}{"message": "invalid api key", "type": "invalid_request_error"},
				})
			},
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": []interface{}{}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := NewOpenAIEmbedder(newOpenAIServer(t, tt.handler))
			vec, err := emb.Embed(context.Background(), "q")
			assert.Nil(t, vec)
			assert.True(t, apperrors.IsProviderError(err))
		})
	}
}

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{"index": 0, "finish_reason": "stop", "message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	opts := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, SystemPrompt, req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "Question: How?\n\nSources:\nSource 1: T\nC\nURL: ", req.Messages[1].Content)

		writeJSON(w, http.StatusOK, chatResponse("Like this (T)."))
	})

	gen := NewOpenAIGenerator(opts, 0.2)
	answer, err := gen.Generate(context.Background(), "How?", "Source 1: T\nC\nURL: ")
	require.NoError(t, err)
	assert.Equal(t, "Like this (T).", answer)
}

func TestOpenAIGenerator_EmptyContent(t *testing.T) {
	opts := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, chatResponse(""))
	})

	answer, err := NewOpenAIGenerator(opts, 0).Generate(context.Background(), "q", "e")
	require.NoError(t, err)
	assert.Equal(t, MessageNoAnswer, answer)
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, MessageNoAnswer, normalizeAnswer(""))
	// 非空内容原样返回，包括纯空白
	assert.Equal(t, "  ", normalizeAnswer("  "))
	assert.Equal(t, "\nSee the refund policy.\n", normalizeAnswer("\nSee the refund policy.\n"))
}

func TestOpenAIGenerator_RateLimited(t *testing.T) {
	opts := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": map[string]interface{}{"message": "slow down", "type": "rate_limit_error"},
		})
	})

	_, err := NewOpenAIGenerator(opts, 0).Generate(context.Background(), "q", "e")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderError(err))

	details, ok := apperrors.GetAppError(err).Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, details["status_code"])
}

func TestNoopGenerator(t *testing.T) {
	gen := NewOpenAIGenerator(OpenAIOptions{}, 0)
	assert.False(t, gen.Ready())
	_, err := gen.Generate(context.Background(), "q", "e")
	assert.True(t, apperrors.IsProviderError(err))
}
