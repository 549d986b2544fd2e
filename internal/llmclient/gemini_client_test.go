package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/history"
	"github.com/pdellibergoli/ai-test-automation/internal/config"
)

func testModelConfig(endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Model:             "gemini-2.5-pro",
		APIKey:            "test-key",
		Endpoint:          endpoint,
		Temperature:       0.2,
		MaxTokens:         1024,
		RequestsPerMinute: 60000,
	}
}

func geminiOKBody(text string) string {
	return fmt.Sprintf(`{
		"candidates": [{"content": {"parts": [{"text": %q}], "role": "model"}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
	}`, text)
}

func TestNewGeminiClient(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewGeminiClient(config.LLMModelConfig{Model: "gemini-2.5-pro"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API Key is required")
	})

	t.Run("derives default endpoint from model", func(t *testing.T) {
		c, err := NewGeminiClient(config.LLMModelConfig{Model: "gemini-2.5-flash", APIKey: "k"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t,
			"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent",
			c.endpoint)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("success with request shape", func(t *testing.T) {
		var captured geminiRequestPayload
		var apiKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.Header.Get("x-goog-api-key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			fmt.Fprint(w, geminiOKBody(`{"done": {"text": "ok"}}`))
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testModelConfig(srv.URL), zap.NewNop())
		require.NoError(t, err)

		got, err := c.Generate(context.Background(), GenerationRequest{
			SystemPrompt: "you are a test agent",
			Conversation: []history.Message{
				history.Text(history.RoleSystem, "extra system note"),
				history.Text(history.RoleUser, "tap the login button"),
				history.Text(history.RoleAssistant, "tapping now"),
			},
			ForceJSON: true,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"done": {"text": "ok"}}`, got)
		assert.Equal(t, "test-key", apiKey)

		require.NotNil(t, captured.SystemInstruction)
		assert.Equal(t, "you are a test agent", captured.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
		assert.InDelta(t, 0.2, captured.GenerationConfig.Temperature, 0.001)

		// System messages fold into the user role, assistant maps to model.
		require.Len(t, captured.Contents, 3)
		assert.Equal(t, "user", captured.Contents[0].Role)
		assert.Equal(t, "user", captured.Contents[1].Role)
		assert.Equal(t, "model", captured.Contents[2].Role)
		assert.Equal(t, "tapping now", captured.Contents[2].Parts[0].Text)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, geminiOKBody("second attempt"))
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testModelConfig(srv.URL), zap.NewNop())
		require.NoError(t, err)

		got, err := c.Generate(context.Background(), GenerationRequest{
			Conversation: []history.Message{history.Text(history.RoleUser, "hi")},
		})
		require.NoError(t, err)
		assert.Equal(t, "second attempt", got)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error": {"message": "invalid argument"}}`)
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testModelConfig(srv.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), GenerationRequest{
			Conversation: []history.Message{history.Text(history.RoleUser, "hi")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("safety block is permanent", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			fmt.Fprint(w, `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`)
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testModelConfig(srv.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), GenerationRequest{
			Conversation: []history.Message{history.Text(history.RoleUser, "hi")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SAFETY")
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("no candidates is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"candidates": []}`)
		}))
		defer srv.Close()

		c, err := NewGeminiClient(testModelConfig(srv.URL), zap.NewNop())
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), GenerationRequest{
			Conversation: []history.Message{history.Text(history.RoleUser, "hi")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no candidates")
	})

	t.Run("cancelled context interrupts the limiter", func(t *testing.T) {
		c, err := NewGeminiClient(testModelConfig("http://127.0.0.1:0"), zap.NewNop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = c.Generate(ctx, GenerationRequest{
			Conversation: []history.Message{history.Text(history.RoleUser, "hi")},
		})
		require.Error(t, err)
	})
}

func TestConvertConversation(t *testing.T) {
	contents := convertConversation([]history.Message{
		history.Text(history.RoleUser, "hello"),
		{Role: history.RoleUser, Parts: []history.ContentPart{{Type: history.PartImage, ImageURL: "data:image/png;base64,xx"}}},
		history.Text(history.RoleAssistant, ""),
	})
	// Image-only and empty messages are skipped.
	require.Len(t, contents, 1)
	assert.Equal(t, "hello", contents[0].Parts[0].Text)
}
