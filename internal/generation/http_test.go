package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "prompt-dispatcher/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerator_Success(t *testing.T) {
	reply := "Metformin is associated with a mean HbA1c reduction of 0.81.\n\n  "

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "analyze llm_input_data.txt", req.Prompt)
		assert.Equal(t, 512, req.MaxTokens)
		assert.InDelta(t, 0.2, req.Temperature, 1e-9)

		_ = json.NewEncoder(w).Encode(generateResponse{Text: reply})
	}))
	defer server.Close()

	gen := NewHTTPGenerator(Options{
		BaseURL:     server.URL + "/",
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
		MaxTokens:   512,
		Temperature: 0.2,
	})

	text, err := gen.Generate(context.Background(), "analyze llm_input_data.txt")
	require.NoError(t, err)
	assert.Equal(t, reply, text, "reply must be returned unmodified")
	assert.Equal(t, "http", gen.Name())
}

func TestHTTPGenerator_FailuresCollapseWithoutRetry(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
		{
			name: "empty text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"text":"   "}`))
			},
		},
		{
			name:    "timeout",
			timeout: 30 * time.Millisecond,
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(300 * time.Millisecond)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				tt.handler(w, r)
			}))
			defer server.Close()

			timeout := tt.timeout
			if timeout == 0 {
				timeout = 5 * time.Second
			}
			gen := NewHTTPGenerator(Options{BaseURL: server.URL, Timeout: timeout})

			_, err := gen.Generate(context.Background(), "prompt")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrGenerationService))
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestHTTPGenerator_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPGenerator(Options{BaseURL: url, Timeout: time.Second}).Generate(context.Background(), "prompt")
	assert.True(t, errors.Is(err, apperrors.ErrGenerationService))
}
