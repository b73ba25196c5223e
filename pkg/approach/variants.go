package approach

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

const (
	defaultVariantCount = 3
	maxVariantCount     = 10
)

// VariantsApproach fans out N independent single-shot generations and
// collects them in order. The variant count comes from the context's
// Extra["count"]; it defaults to three.
type VariantsApproach struct{}

func NewVariantsApproach() *VariantsApproach {
	return &VariantsApproach{}
}

func (a *VariantsApproach) Name() string { return "variants" }

func (a *VariantsApproach) Description() string {
	return "Concurrent generation of several independent takes on the same prompt."
}

func variantCount(actx *Context) (int, error) {
	if actx.Extra == nil {
		return defaultVariantCount, nil
	}
	raw, ok := actx.Extra["count"]
	if !ok {
		return defaultVariantCount, nil
	}

	var count int
	switch v := raw.(type) {
	case int:
		count = v
	case float64: // JSON numbers decode as float64
		count = int(v)
	default:
		return 0, errors.New(errors.InvalidInput, "variant count must be a number")
	}

	if count < 1 || count > maxVariantCount {
		return 0, errors.WithFields(
			errors.New(errors.InvalidInput, "variant count out of range"),
			errors.Fields{"count": count, "max": maxVariantCount})
	}
	return count, nil
}

func (a *VariantsApproach) Execute(ctx context.Context, actx *Context, llm core.LLM) (*Result, error) {
	if actx.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt is required")
	}

	count, err := variantCount(actx)
	if err != nil {
		return nil, err
	}

	outputs := make([]*core.LLMResponse, count)
	var mu sync.Mutex

	p := pool.New().WithContext(ctx).WithCancelOnError()
	for i := 0; i < count; i++ {
		idx := i
		p.Go(func(ctx context.Context) error {
			prompt := fmt.Sprintf("%s\n%s\n\nThis is take %d of %d. Make it distinct from the other takes.",
				actx.briefPreamble(), actx.Prompt, idx+1, count)

			resp, err := llm.Generate(ctx, prompt, actx.GenerateOptions()...)
			if err != nil {
				return errors.WithFields(
					errors.Wrap(err, errors.StepExecutionFailed, "variant generation failed"),
					errors.Fields{"variant": idx + 1})
			}

			mu.Lock()
			outputs[idx] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ApproachExecutionFailed, "variants approach failed")
	}

	result := &Result{
		Approach: a.Name(),
		Usage:    &core.TokenInfo{},
		Metadata: map[string]interface{}{"count": count},
	}
	for i, resp := range outputs {
		result.Steps = append(result.Steps, StepOutput{
			Step:    fmt.Sprintf("variant_%d", i+1),
			Content: resp.Content,
			Usage:   resp.Usage,
		})
		result.Usage.Add(resp.Usage)
		if i == 0 {
			result.Output = resp.Content
		}
	}
	return result, nil
}
