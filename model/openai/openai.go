// Package openai provides a Gateway adapter for the OpenAI Chat Completions
// API. It adapts the normalized content union into the SDK's message format
// and back, attaching each tool result immediately after the assistant
// message that issued the matching call.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/model"
)

// Capability is the schema profile the Chat Completions API accepts.
var Capability = model.Capability{
	Provider:           "openai",
	RequireDescription: true,
}

// Options configure the OpenAI gateway adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Gateway wraps the OpenAI Chat Completions API behind the generic
// model.Gateway interface.
type Gateway struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI gateway using the official client.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates an OpenAI gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
}

// Generate implements model.Gateway.
func (g *Gateway) Generate(ctx context.Context, req model.Request) (*model.Turn, error) {
	if err := model.Prepare(req, Capability); err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, model.WrapProviderError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &model.ProviderProtocolError{
			Provider: "openai",
			Err:      errNoChoices,
		}
	}

	choice := resp.Choices[0]
	turn := &model.Turn{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return turn, nil
}

// buildMessages converts normalized contents into chat messages. Tool-role
// contents become ToolMessage entries directly after the assistant message
// holding the matching tool calls; ValidatePairing has already guaranteed
// that ordering.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleSystem:
			if text := c.Text(); text != "" {
				messages = append(messages, openai.SystemMessage(text))
			}
		case core.RoleUser:
			if text := c.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		case core.RoleAssistant:
			messages = append(messages, buildAssistantMessage(c))
		case core.RoleTool:
			for _, result := range c.ToolResults() {
				payload := result.Payload
				if result.Status == core.ToolStatusError {
					payload = result.Error
				}
				messages = append(messages, openai.ToolMessage(payload, result.CallID))
			}
		default:
			if text := c.Text(); text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	return messages
}

func buildAssistantMessage(c core.Content) openai.ChatCompletionMessageParamUnion {
	calls := c.ToolCalls()
	if len(calls) == 0 {
		return openai.AssistantMessage(c.Text())
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, call := range calls {
		toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	assistant := openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	// Reasoning text that accompanied the calls travels with them.
	if text := c.Text(); text != "" {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(text),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// buildTools assembles the tool definitions for the request.
func buildTools(specs []model.ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(specs))
	for i, spec := range specs {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  spec.Parameters,
			},
		}
	}
	return tools
}

// Info returns metadata describing this OpenAI gateway.
func (g *Gateway) Info() model.Info {
	return model.Info{Name: g.opts.Model, Provider: "openai"}
}
