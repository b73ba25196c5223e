package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONResponse(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		result, err := ParseJSONResponse(`{"headline": "Go further", "score": 3}`)
		require.NoError(t, err)
		assert.Equal(t, "Go further", result["headline"])
		assert.Equal(t, float64(3), result["score"])
	})

	t.Run("fenced JSON", func(t *testing.T) {
		result, err := ParseJSONResponse("```json\n{\"headline\": \"Go further\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Go further", result["headline"])
	})

	t.Run("fenced without language tag", func(t *testing.T) {
		result, err := ParseJSONResponse("```\n{\"ok\": true}\n```")
		require.NoError(t, err)
		assert.Equal(t, true, result["ok"])
	})

	t.Run("invalid JSON errors", func(t *testing.T) {
		_, err := ParseJSONResponse("not json at all")
		assert.Error(t, err)
	})
}
