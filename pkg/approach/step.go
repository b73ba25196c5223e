package approach

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// RetryConfig defines how to handle step failures.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffMultiplier determines how long to wait between retries.
	BackoffMultiplier float64

	// baseBackoff is overridable in tests; zero means one second.
	baseBackoff time.Duration
}

// DefaultRetryConfig retries transient LLM failures twice with exponential
// backoff.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		BackoffMultiplier: 2.0,
	}
}

// Step is one unit of a chained approach. Its prompt is built from the
// shared context plus the accumulated outputs of earlier steps.
type Step struct {
	// Name identifies the step in the result trail.
	Name string

	// Prompt builds the LLM prompt for this step. state maps earlier step
	// names to their outputs.
	Prompt func(actx *Context, state map[string]string) string

	// Multimodal sends the selected canvas images along with the prompt.
	Multimodal bool

	// Retry specifies how to handle failures; nil means a single attempt.
	Retry *RetryConfig
}

// run executes the step against the LLM, retrying per configuration.
func (s *Step) run(ctx context.Context, actx *Context, llm core.LLM, state map[string]string) (*core.LLMResponse, error) {
	if s.Prompt == nil {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "step has no prompt builder"),
			errors.Fields{"step": s.Name})
	}

	prompt := s.Prompt(actx, state)

	var resp *core.LLMResponse
	var err error
	if s.Retry != nil {
		resp, err = s.runWithRetry(ctx, actx, llm, prompt)
	} else {
		resp, err = s.runOnce(ctx, actx, llm, prompt)
	}

	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.StepExecutionFailed, fmt.Sprintf("step %s execution failed", s.Name)),
			errors.Fields{
				"step":             s.Name,
				"retry_configured": s.Retry != nil,
			})
	}
	return resp, nil
}

func (s *Step) runOnce(ctx context.Context, actx *Context, llm core.LLM, prompt string) (*core.LLMResponse, error) {
	if err := errors.CheckContext(ctx, "step "+s.Name); err != nil {
		return nil, err
	}

	if s.Multimodal && len(actx.Images) > 0 {
		content := append([]core.ContentBlock{core.NewTextBlock(prompt)}, actx.Images...)
		return llm.GenerateWithContent(ctx, content, actx.GenerateOptions()...)
	}
	return llm.Generate(ctx, prompt, actx.GenerateOptions()...)
}

func (s *Step) runWithRetry(ctx context.Context, actx *Context, llm core.LLM, prompt string) (*core.LLMResponse, error) {
	base := s.Retry.baseBackoff
	if base == 0 {
		base = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < s.Retry.MaxAttempts; attempt++ {
		resp, err := s.runOnce(ctx, actx, llm, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Canceled contexts are not retryable
		if errors.CodeOf(err) == errors.Canceled {
			return nil, err
		}

		// No point backing off once the attempts are spent
		if attempt == s.Retry.MaxAttempts-1 {
			break
		}

		backoff := time.Duration(float64(base) *
			math.Pow(s.Retry.BackoffMultiplier, float64(attempt)))
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "context canceled during retry backoff")
		case <-time.After(backoff):
			continue
		}
	}
	return nil, errors.WithFields(
		errors.Wrap(lastErr, errors.StepExecutionFailed, "max retry attempts reached"),
		errors.Fields{
			"step":         s.Name,
			"max_attempts": s.Retry.MaxAttempts,
		})
}
