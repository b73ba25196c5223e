package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeorgeStrakhov/briefboarder/internal/testutil"
	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
)

func TestNewAnthropicLLM(t *testing.T) {
	t.Run("valid model", func(t *testing.T) {
		llm, err := NewAnthropicLLM("test-key", anthropic.ModelClaudeSonnet4_5_20250929, nil)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", llm.ProviderName())
		assert.Contains(t, llm.Capabilities(), core.CapabilityVision)
	})

	t.Run("missing API key rejected", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		_, err := NewAnthropicLLM("", anthropic.ModelClaudeSonnet4_5_20250929, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})

	t.Run("API key from environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "env-key")
		_, err := NewAnthropicLLM("", anthropic.ModelClaudeSonnet4_5_20250929, nil)
		assert.NoError(t, err)
	})

	t.Run("unsupported model rejected", func(t *testing.T) {
		_, err := NewAnthropicLLM("test-key", "gemini-2.5-pro", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported Anthropic model")
	})
}

func TestIsValidAnthropicModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"claude-3-haiku-20240307", true},
		{"claude-sonnet-4-5-20250929", true},
		{"claude-opus-4-1-20250805", true},
		{"gpt-4o", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isValidAnthropicModel(tt.model), tt.model)
	}
}

func TestGenerate(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Own the dawn."}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer fake.Close()

	capture := testutil.CaptureLogs(t)

	llm, err := NewAnthropicLLM("test-key", anthropic.ModelClaudeSonnet4_5_20250929,
		&core.EndpointConfig{BaseURL: fake.URL})
	require.NoError(t, err)

	resp, err := llm.Generate(context.Background(), "write a tagline")
	require.NoError(t, err)
	assert.Equal(t, "Own the dawn.", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	// The completion log entry carries the model ID and token usage
	var found bool
	for _, e := range capture.Entries() {
		if e.ModelID == llm.ModelID() && e.TokenInfo != nil && e.TokenInfo.TotalTokens == 15 {
			found = true
		}
	}
	assert.True(t, found, "expected a log entry annotated with model and token usage")
}

func TestConvertContentBlocksToMessages(t *testing.T) {
	t.Run("text and image grouped into one user message", func(t *testing.T) {
		blocks := []core.ContentBlock{
			core.NewTextBlock("describe these ads"),
			core.NewImageBlock([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png"),
		}

		messages := convertContentBlocksToMessages(blocks)
		require.Len(t, messages, 1)
		assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
		require.Len(t, messages[0].Content, 2)
		assert.NotNil(t, messages[0].Content[0].OfText)
		assert.NotNil(t, messages[0].Content[1].OfImage)
	})

	t.Run("empty image data skipped", func(t *testing.T) {
		blocks := []core.ContentBlock{
			{Type: core.BlockTypeImage, MimeType: "image/png"},
		}
		assert.Empty(t, convertContentBlocksToMessages(blocks))
	})

	t.Run("no blocks yields no messages", func(t *testing.T) {
		assert.Empty(t, convertContentBlocksToMessages(nil))
	})
}
