package llms

import (
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// NewLLM creates a new LLM instance based on the provided model ID.
func NewLLM(apiKey string, modelID core.ModelID, endpoint *core.EndpointConfig) (core.LLM, error) {
	if err := core.ValidateEndpointConfig(endpoint); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(string(modelID), "claude-"):
		return NewAnthropicLLM(apiKey, anthropic.Model(modelID), endpoint)
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unsupported model ID"),
			errors.Fields{"model": string(modelID)})
	}
}
