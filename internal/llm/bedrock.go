package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"smart-mail-relay-go/internal/apperrors"
)

// BedrockClient is the default Client, invoking Anthropic-family models
// through AWS Bedrock's InvokeModel API. Bedrock is chosen as the bundled
// default because the provider field in spec §6's executeChat signature is
// otherwise unconstrained ("any HTTP or local runtime is acceptable").
type BedrockClient struct {
	runtime *bedrockruntime.Client
}

// NewBedrockClient builds a BedrockClient using the default AWS credential
// chain, scoped to region.
func NewBedrockClient(ctx context.Context, region string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.New(apperrors.Fatal, "llm.NewBedrockClient", fmt.Errorf("loading AWS config: %w", err))
	}
	return &BedrockClient{runtime: bedrockruntime.NewFromConfig(cfg)}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
	StopReason string               `json:"stop_reason"`
}

// ExecuteChat implements Client against Bedrock's Anthropic message format.
// provider is accepted for interface conformance but ignored: Bedrock model
// IDs already encode the provider (e.g. "anthropic.claude-3-haiku").
func (c *BedrockClient) ExecuteChat(ctx context.Context, prompt, model, provider string, opts ChatOptions) (ChatResult, error) {
	reqBody, err := buildAnthropicRequest(prompt, opts)
	if err != nil {
		return ChatResult{}, apperrors.New(apperrors.Permanent, "llm.ExecuteChat", err)
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        reqBody,
	})
	if err != nil {
		return ChatResult{}, apperrors.New(apperrors.Transient, "llm.ExecuteChat", fmt.Errorf("invoking model %s: %w", model, err))
	}

	result, err := parseAnthropicResponse(out.Body)
	if err != nil {
		return ChatResult{}, apperrors.New(apperrors.Transient, "llm.ExecuteChat", err)
	}
	return result, nil
}

func buildAnthropicRequest(prompt string, opts ChatOptions) ([]byte, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      opts.Temperature,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return body, nil
}

func parseAnthropicResponse(raw []byte) (ChatResult, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ChatResult{}, fmt.Errorf("decoding response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return ChatResult{
		Response: text,
		Message:  resp.StopReason,
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
