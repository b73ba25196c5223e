// Package approach implements the creative approach agent layer: a registry
// of named strategies that drive one or more LLM calls over a shared brief
// context and return structured creative output.
package approach

import (
	"context"
	"strings"

	"github.com/GeorgeStrakhov/briefboarder/pkg/core"
)

// Approach is a named strategy for producing creative output from a brief.
// Implementations may make a single LLM call or chain several.
type Approach interface {
	// Name returns the registry key for this approach.
	Name() string

	// Description explains what the approach produces, for listing endpoints.
	Description() string

	// Execute drives the approach against the given LLM.
	Execute(ctx context.Context, actx *Context, llm core.LLM) (*Result, error)
}

// Context is the shared input every approach receives: the brief being
// worked on, the user's prompt, any selected canvas images, and the model
// settings in effect.
type Context struct {
	BriefName        string
	BriefDescription string
	Prompt           string
	Images           []core.ContentBlock

	// Generation settings carried over from the brief.
	MaxTokens   int
	Temperature float64

	// Extra carries approach-specific parameters (e.g. variant count).
	Extra map[string]interface{}
}

// GenerateOptions translates the context settings into LLM call options.
func (c *Context) GenerateOptions() []core.GenerateOption {
	var opts []core.GenerateOption
	if c.MaxTokens > 0 {
		opts = append(opts, core.WithMaxTokens(c.MaxTokens))
	}
	if c.Temperature > 0 {
		opts = append(opts, core.WithTemperature(c.Temperature))
	}
	return opts
}

// briefPreamble renders the brief portion of a prompt.
func (c *Context) briefPreamble() string {
	var b strings.Builder
	b.WriteString("Brief: ")
	b.WriteString(c.BriefName)
	b.WriteString("\n")
	if c.BriefDescription != "" {
		b.WriteString(c.BriefDescription)
		b.WriteString("\n")
	}
	return b.String()
}

// StepOutput records one LLM call made while executing an approach.
type StepOutput struct {
	Step    string          `json:"step"`
	Content string          `json:"content"`
	Usage   *core.TokenInfo `json:"usage,omitempty"`
}

// Result is the structured outcome of an approach execution.
type Result struct {
	Approach string                 `json:"approach"`
	Output   string                 `json:"output"`
	Steps    []StepOutput           `json:"steps,omitempty"`
	Usage    *core.TokenInfo        `json:"usage,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
