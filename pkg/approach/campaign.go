package approach

import (
	"context"
	"fmt"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
	"github.com/GeorgeStrakhov/briefboarder/pkg/errors"
)

// CampaignApproach chains three LLM calls: audience insight, concept
// directions, then finished ad copy. Each step's output feeds the next
// prompt; transient failures retry with backoff.
type CampaignApproach struct {
	steps []*Step
}

func NewCampaignApproach() *CampaignApproach {
	return &CampaignApproach{
		steps: []*Step{
			{
				Name:       "insight",
				Multimodal: true,
				Retry:      DefaultRetryConfig(),
				Prompt: func(actx *Context, state map[string]string) string {
					return actx.briefPreamble() +
						"\nIdentify the target audience for this campaign and the single " +
						"sharpest insight about what moves them. Be specific and concrete.\n\n" +
						"Direction from the user: " + actx.Prompt
				},
			},
			{
				Name:  "concepts",
				Retry: DefaultRetryConfig(),
				Prompt: func(actx *Context, state map[string]string) string {
					return actx.briefPreamble() +
						"\nAudience insight:\n" + state["insight"] +
						"\n\nPropose three distinct creative concept directions built on this " +
						"insight. For each: a name, the core idea in two sentences, and the " +
						"visual world it lives in."
				},
			},
			{
				Name:  "copy",
				Retry: DefaultRetryConfig(),
				Prompt: func(actx *Context, state map[string]string) string {
					return actx.briefPreamble() +
						"\nConcept directions:\n" + state["concepts"] +
						"\n\nPick the strongest concept and write finished ad copy for it: " +
						"a headline, a subline, and body copy under 60 words. Explain the " +
						"choice in one sentence at the end."
				},
			},
		},
	}
}

func (a *CampaignApproach) Name() string { return "campaign" }

func (a *CampaignApproach) Description() string {
	return "Three-step workflow: audience insight, concept directions, finished ad copy."
}

func (a *CampaignApproach) Execute(ctx context.Context, actx *Context, llm core.LLM) (*Result, error) {
	if actx.Prompt == "" {
		return nil, errors.New(errors.InvalidInput, "prompt is required")
	}

	state := make(map[string]string)
	result := &Result{
		Approach: a.Name(),
		Usage:    &core.TokenInfo{},
	}

	for _, step := range a.steps {
		resp, err := step.run(ctx, actx, llm, state)
		if err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.ApproachExecutionFailed, fmt.Sprintf("campaign approach failed at step %s", step.Name)),
				errors.Fields{"step": step.Name})
		}

		state[step.Name] = resp.Content
		result.Steps = append(result.Steps, StepOutput{
			Step:    step.Name,
			Content: resp.Content,
			Usage:   resp.Usage,
		})
		result.Usage.Add(resp.Usage)
	}

	// The final step's output is the deliverable; the trail keeps the rest.
	result.Output = state["copy"]
	return result, nil
}
