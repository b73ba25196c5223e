package llms

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	errs "github.com/GeorgeStrakhov/briefboarder/pkg/errors"
	"github.com/GeorgeStrakhov/briefboarder/pkg/logging"
	"github.com/GeorgeStrakhov/briefboarder/pkg/utils"
)

// AnthropicLLM implements the core.LLM interface for Anthropic's models.
type AnthropicLLM struct {
	client *anthropic.Client
	*core.BaseLLM
}

// NewAnthropicLLM creates a new AnthropicLLM instance. When apiKey is empty
// the ANTHROPIC_API_KEY environment variable is used.
func NewAnthropicLLM(apiKey string, model anthropic.Model, endpoint *core.EndpointConfig) (*AnthropicLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errs.New(errs.InvalidInput, "API key is required")
	}

	if !isValidAnthropicModel(string(model)) {
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unsupported Anthropic model"),
			errs.Fields{"model": model})
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint != nil && endpoint.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(endpoint.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	capabilities := []core.Capability{
		core.CapabilityCompletion,
		core.CapabilityChat,
		core.CapabilityJSON,
		core.CapabilityStreaming,
		core.CapabilityVision,
	}

	return &AnthropicLLM{
		client:  &client,
		BaseLLM: core.NewBaseLLM("anthropic", core.ModelID(model), capabilities, endpoint),
	}, nil
}

// isValidAnthropicModel checks if the model is a valid Anthropic model.
func isValidAnthropicModel(model string) bool {
	validPrefixes := []string{
		"claude-3",
		"claude-4",
		"claude-haiku",
		"claude-sonnet",
		"claude-opus",
	}

	for _, prefix := range validPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Generate implements the core.LLM interface.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	logger := logging.GetLogger()
	ctx = logging.WithModelID(ctx, a.ModelID())
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: anthropic.Model(a.ModelID()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	})

	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)
		}
		return nil, errs.WithFields(
			errs.Wrap(err, errs.LLMGenerationFailed, "failed to generate response"),
			errs.Fields{
				"model":      a.ModelID(),
				"max_tokens": opts.MaxTokens,
			})
	}

	if message == nil {
		return nil, errs.New(errs.LLMGenerationFailed, "received nil response from Anthropic API")
	}

	if len(message.Content) == 0 {
		return nil, errs.New(errs.LLMGenerationFailed, "received empty content from Anthropic API")
	}

	// Extract text from response using union type methods
	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.Debug(withTokenUsage(ctx, usage), "Anthropic completion finished")

	return &core.LLMResponse{Content: responseText, Usage: usage}, nil
}

// withTokenUsage attaches response usage to the context so the log entry
// carries structured token counts.
func withTokenUsage(ctx context.Context, usage *core.TokenInfo) context.Context {
	return logging.WithTokenInfo(ctx, &logging.TokenInfo{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	})
}

// GenerateWithJSON implements the core.LLM interface.
func (a *AnthropicLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...core.GenerateOption) (map[string]interface{}, error) {
	response, err := a.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}

	return utils.ParseJSONResponse(response.Content)
}

// GenerateWithContent generates a response with multimodal content. Selected
// canvas images reach the model as base64 image blocks.
func (a *AnthropicLLM) GenerateWithContent(ctx context.Context, content []core.ContentBlock, options ...core.GenerateOption) (*core.LLMResponse, error) {
	logger := logging.GetLogger()
	ctx = logging.WithModelID(ctx, a.ModelID())
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	messages := convertContentBlocksToMessages(content)
	if len(messages) == 0 {
		return nil, errs.New(errs.InvalidInput, "no content provided")
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.ModelID()),
		Messages:    messages,
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	})

	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)
		}
		return nil, errs.Wrap(err, errs.LLMGenerationFailed, "failed to generate response with content")
	}

	if message == nil || len(message.Content) == 0 {
		return nil, errs.New(errs.LLMGenerationFailed, "received empty response from Anthropic API")
	}

	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.Debug(withTokenUsage(ctx, usage), "Anthropic multimodal completion finished")

	return &core.LLMResponse{Content: responseText, Usage: usage}, nil
}

// StreamGenerate implements streaming text generation using the official SDK's iterator pattern.
func (a *AnthropicLLM) StreamGenerate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.StreamResponse, error) {
	logger := logging.GetLogger()
	ctx = logging.WithModelID(ctx, a.ModelID())
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	chunkChan := make(chan core.StreamChunk)
	streamCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(chunkChan)
		defer cancelFunc()

		stream := a.client.Messages.NewStreaming(streamCtx, anthropic.MessageNewParams{
			Model: anthropic.Model(a.ModelID()),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
			MaxTokens:   int64(opts.MaxTokens),
			Temperature: anthropic.Float(opts.Temperature),
		})

		defer stream.Close()

		var tokenInfo core.TokenInfo

		for stream.Next() {
			event := stream.Current()

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if textDelta := variant.Delta.AsTextDelta(); textDelta.Text != "" {
					chunkChan <- core.StreamChunk{Content: textDelta.Text}
				}

			case anthropic.MessageStartEvent:
				tokenInfo.PromptTokens = int(variant.Message.Usage.InputTokens)

			case anthropic.MessageDeltaEvent:
				tokenInfo.CompletionTokens = int(variant.Usage.OutputTokens)
				tokenInfo.TotalTokens = tokenInfo.PromptTokens + tokenInfo.CompletionTokens

				chunkChan <- core.StreamChunk{
					Usage: &tokenInfo,
				}

			case anthropic.MessageStopEvent:
				chunkChan <- core.StreamChunk{Done: true}

			case anthropic.ContentBlockStartEvent:
				// Beginning of a content block, nothing to do

			default:
				logger.Debug(streamCtx, "Received event type: %T", event)
			}
		}

		if err := stream.Err(); err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				logger.Error(streamCtx, "Anthropic streaming error: status code %d", apiErr.StatusCode)
			}
			chunkChan <- core.StreamChunk{
				Error: errs.Wrap(err, errs.LLMGenerationFailed, "streaming failed"),
			}
		}
	}()

	return &core.StreamResponse{
		ChunkChannel: chunkChan,
		Cancel:       cancelFunc,
	}, nil
}

// convertContentBlocksToMessages converts core.ContentBlock to anthropic MessageParam.
func convertContentBlocksToMessages(blocks []core.ContentBlock) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	var contentBlockUnions []anthropic.ContentBlockParamUnion

	for _, block := range blocks {
		switch block.Type {
		case core.BlockTypeText:
			contentBlockUnions = append(contentBlockUnions, anthropic.ContentBlockParamUnion{
				OfText: &anthropic.TextBlockParam{
					Text: block.Text,
				},
			})

		case core.BlockTypeImage:
			if len(block.Data) > 0 {
				// Data field requires a base64-encoded string
				contentBlockUnions = append(contentBlockUnions, anthropic.ContentBlockParamUnion{
					OfImage: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfBase64: &anthropic.Base64ImageSourceParam{
								Data:      base64.StdEncoding.EncodeToString(block.Data),
								MediaType: anthropic.Base64ImageSourceMediaType(block.MimeType),
							},
						},
					},
				})
			}
		}
	}

	// A single user message carries all content blocks
	if len(contentBlockUnions) > 0 {
		messages = append(messages, anthropic.MessageParam{
			Content: contentBlockUnions,
			Role:    anthropic.MessageParamRoleUser,
		})
	}

	return messages
}
