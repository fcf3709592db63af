package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *Request {
	return &Request{
		Model:       "test-model",
		System:      "Use only the context.",
		Messages:    []Message{{Role: "user", Content: "Question:\nWhat is MRR?\n\nContext:\n- Total MRR: $127,100"}},
		Temperature: 0.2,
		MaxTokens:   200,
	}
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAIGenerate_Success(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var body openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Equal(t, openai.ChatMessageRoleSystem, body.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Model: "test-model",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "Total active MRR is $127,100."},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 8},
		})
	})

	resp, err := NewOpenAIProvider("test-api-key", ts.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Total active MRR is $127,100.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 8, resp.OutputTokens)
}

func TestOpenAIGenerate_Unauthorized(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid API key", "type": "invalid_request_error"},
		})
	})

	_, err := NewOpenAIProvider("bad", ts.URL).Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, CauseUnauthorized, Classify(err))
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{Model: "test-model"})
	})

	_, err := NewOpenAIProvider("k", ts.URL).Generate(context.Background(), testRequest())
	assert.Equal(t, CauseMalformed, Classify(err))
}

func TestCohereGenerate_Success(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/chat", r.URL.Path)
		assert.Equal(t, "Bearer co-key", r.Header.Get("Authorization"))

		var body cohereRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, 200, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1",
			"finish_reason": "COMPLETE",
			"message": {"role": "assistant", "content": [
				{"type": "thinking", "thinking": "scratch work"},
				{"type": "text", "text": "Total active MRR is "},
				{"type": "text", "text": "$127,100."}
			]},
			"usage": {"tokens": {"input_tokens": 42, "output_tokens": 7}}
		}`))
	})

	resp, err := NewCohereProvider("co-key", ts.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Total active MRR is $127,100.", resp.Content)
	assert.Equal(t, "COMPLETE", resp.FinishReason)
	assert.Equal(t, 42, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)
}

func TestCohereGenerate_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   Cause
	}{
		{http.StatusUnauthorized, CauseUnauthorized},
		{http.StatusForbidden, CauseUnauthorized},
		{http.StatusNotFound, CauseModelUnavailable},
		{http.StatusTooManyRequests, CauseRateLimited},
		{http.StatusGatewayTimeout, CauseTimeout},
		{http.StatusBadGateway, CauseUnreachable},
		{http.StatusBadRequest, CauseUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := NewCohereProvider("k", ts.URL).Generate(context.Background(), testRequest())
			require.Error(t, err)
			assert.Equal(t, tt.want, Classify(err))
		})
	}
}

func TestCohereGenerate_MalformedBody(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message": `))
	})
	_, err := NewCohereProvider("k", ts.URL).Generate(context.Background(), testRequest())
	assert.Equal(t, CauseMalformed, Classify(err))
}

func TestCohereGenerate_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewCohereProvider("k", url).Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, CauseUnreachable, Classify(err))
}

func TestCohereGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewCohereProvider("k", ts.URL).Generate(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, CauseTimeout, Classify(err))
}

func TestOllamaGenerate_Success(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.False(t, body.Stream)
		assert.Equal(t, 200, body.Options.NumPredict)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"MRR is $127,100."},"done_reason":"stop","prompt_eval_count":30,"eval_count":6}`))
	})

	resp, err := NewOllamaProvider(ts.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "MRR is $127,100.", resp.Content)
	assert.Equal(t, 30, resp.InputTokens)
}

func TestOllamaGenerate_ModelMissing(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := NewOllamaProvider(ts.URL).Generate(context.Background(), testRequest())
	assert.Equal(t, CauseModelUnavailable, Classify(err))
}

func TestGeminiGenerate_Success(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "test-model:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Total active MRR is $127,100."}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 9}
		}`))
	})

	p, err := NewGeminiProvider(context.Background(), "g-key", ts.URL)
	require.NoError(t, err)
	resp, err := p.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Total active MRR is $127,100.", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 9, resp.OutputTokens)
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	ts := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	})

	p, err := NewGeminiProvider(context.Background(), "g-key", ts.URL)
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), testRequest())
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestEchoProvider(t *testing.T) {
	resp, err := EchoProvider{}.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "From the aggregate data: Total MRR: $127,100.", resp.Content)

	_, err = EchoProvider{}.Generate(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "no facts"}}})
	assert.Equal(t, CauseMalformed, Classify(err))
}
