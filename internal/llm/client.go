// Package llm defines the abstract LLM collaborator spec §6 names
// (executeChat) plus a default AWS Bedrock adapter. Grounded on the
// llm.Client constructor-injection shape in other_examples'
// alexrabarts-focus-agent scheduler (field type llm.Client, injected via
// New(..., llmClient llm.Client, ...)) — the teacher repo has no LLM
// abstraction of its own to generalize from.
package llm

import "context"

// Usage mirrors whatever token accounting the provider returns, if any.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatOptions narrows one executeChat call.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatResult is executeChat's return shape (spec §6): response is the raw
// text the pipeline hands to parseAndValidate; Message and Usage are
// optional diagnostics.
type ChatResult struct {
	Response string
	Message  string
	Usage    *Usage
}

// Client is the abstract collaborator spec §6 names: "executeChat(prompt,
// model, provider, opts) → {response, message?, usage?}. The core does not
// mandate a protocol."
type Client interface {
	ExecuteChat(ctx context.Context, prompt, model, provider string, opts ChatOptions) (ChatResult, error)
}
