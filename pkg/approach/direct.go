package approach

import (
	"context"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// DirectApproach makes a single LLM call with the brief context and user
// prompt. When canvas images are selected they are sent along as vision
// input.
type DirectApproach struct{}

func NewDirectApproach() *DirectApproach {
	return &DirectApproach{}
}

func (a *DirectApproach) Name() string { return "direct" }

func (a *DirectApproach) Description() string {
	return "Single-shot generation from the brief and prompt, with selected images as visual reference."
}

func (a *DirectApproach) Execute(ctx context.Context, actx *Context, llm core.LLM) (*Result, error) {
	if actx.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt is required")
	}

	prompt := actx.briefPreamble() + "\n" + actx.Prompt

	var resp *core.LLMResponse
	var err error
	if len(actx.Images) > 0 {
		content := append([]core.ContentBlock{core.NewTextBlock(prompt)}, actx.Images...)
		resp, err = llm.GenerateWithContent(ctx, content, actx.GenerateOptions()...)
	} else {
		resp, err = llm.Generate(ctx, prompt, actx.GenerateOptions()...)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ApproachExecutionFailed, "direct approach failed")
	}

	return &Result{
		Approach: a.Name(),
		Output:   resp.Content,
		Usage:    resp.Usage,
	}, nil
}
