package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rbright/voiceassist/internal/provider"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func startServer(t *testing.T, status int, body string, seen *chatRequest, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if seen != nil {
			require.NoError(t, json.Unmarshal(raw, seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "They're going home."}}]
}`

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, provider.ErrMissingCredential)
}

func TestCorrectSendsPromptAndReturnsReply(t *testing.T) {
	var seen chatRequest
	var calls atomic.Int32
	srv := startServer(t, http.StatusOK, completionBody, &seen, &calls)

	corrector, err := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("gpt-test"), WithMaxTokens(200), WithTemperature(0.1))
	require.NoError(t, err)
	require.Equal(t, "gpt-test", corrector.Model())

	out, err := corrector.Correct(context.Background(), "their going home")
	require.NoError(t, err)
	require.Equal(t, "They're going home.", out)

	require.Equal(t, "gpt-test", seen.Model)
	require.Equal(t, 0.1, seen.Temperature)
	require.Equal(t, 200, seen.MaxCompletionTokens)
	require.Len(t, seen.Messages, 2)
	require.Equal(t, "system", seen.Messages[0].Role)
	require.Equal(t, provider.GrammarSystemPrompt, seen.Messages[0].Content)
	require.Equal(t, "user", seen.Messages[1].Role)
	require.Equal(t, provider.GrammarUserPrompt("their going home"), seen.Messages[1].Content)
	require.Equal(t, int32(1), calls.Load())
}

func TestCorrectEmptyChoicesReturnsInput(t *testing.T) {
	var calls atomic.Int32
	srv := startServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil, &calls)

	corrector, err := New("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	out, err := corrector.Correct(context.Background(), "unchanged text")
	require.NoError(t, err)
	require.Equal(t, "unchanged text", out)
}

func TestCorrectClassifiesErrorsWithoutRetry(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: provider.ErrAuth},
		{name: "forbidden", status: http.StatusForbidden, want: provider.ErrAuth},
		{name: "server error", status: http.StatusInternalServerError, want: provider.ErrTransport},
		{name: "rate limited", status: http.StatusTooManyRequests, want: provider.ErrTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := startServer(t, tc.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`, nil, &calls)

			corrector, err := New("sk-test", WithBaseURL(srv.URL+"/v1"))
			require.NoError(t, err)

			_, err = corrector.Correct(context.Background(), "text")
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
			require.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestCorrectUnreachableServerIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	corrector, err := New("sk-test", WithBaseURL(url+"/v1"))
	require.NoError(t, err)

	_, err = corrector.Correct(context.Background(), "text")
	require.ErrorIs(t, err, provider.ErrTransport)
}
