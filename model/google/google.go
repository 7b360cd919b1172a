// Package google provides a Gateway adapter for the Google GenAI API.
// Gemini pairs a FunctionResponse with its FunctionCall by function name
// rather than call id, so tool results carry both and the adapter translates
// accordingly.
package google

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/model"
	"google.golang.org/genai"
)

// Capability is the schema profile the GenAI API accepts. Optional
// properties need defaults so function calls stay well-formed when the model
// omits them.
var Capability = model.Capability{
	Provider:        "google",
	DisallowedTypes: []string{"null"},
	RequireDefaults: true,
}

// DefaultModel is used when no model id is configured.
const DefaultModel = "gemini-2.0-flash"

// Options configure the Google gateway adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int32
}

// Gateway wraps the Google GenAI API behind the generic model.Gateway
// interface.
type Gateway struct {
	client *genai.Client
	opts   Options
}

// New creates a Google gateway with the given API key.
func New(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return NewFromClient(client, optFns...), nil
}

// NewFromClient creates a Google gateway from an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Generate implements model.Gateway.
func (g *Gateway) Generate(ctx context.Context, req model.Request) (*model.Turn, error) {
	if err := model.Prepare(req, Capability); err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: g.opts.MaxTokens,
	}
	temp := float32(g.opts.Temperature)
	config.Temperature = &temp
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = buildTools(req.Tools)
	}

	contents := buildContents(req.Contents)

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, contents, config)
	if err != nil {
		return nil, model.WrapProviderError("google", err)
	}

	turn := &model.Turn{}
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		turn.FinishReason = string(candidate.FinishReason)
		if candidate.Content != nil {
			for i, part := range candidate.Content.Parts {
				if part.Text != "" {
					turn.Text += part.Text
				}
				if part.FunctionCall != nil {
					args, _ := json.Marshal(part.FunctionCall.Args)
					id := part.FunctionCall.ID
					if id == "" {
						id = fmt.Sprintf("call_%d_%s", i, part.FunctionCall.Name)
					}
					turn.ToolCalls = append(turn.ToolCalls, core.ToolCall{
						ID:        id,
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					})
				}
			}
		}
	}
	if resp.UsageMetadata != nil {
		turn.Usage = model.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return turn, nil
}

// buildContents converts the content union into GenAI contents. Assistant
// history maps to the "model" role; tool results are user-role
// FunctionResponse parts keyed by tool name.
func buildContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		var parts []*genai.Part
		role := "user"

		switch c.Role {
		case core.RoleAssistant:
			role = "model"
			for _, p := range c.Parts {
				switch part := p.(type) {
				case core.TextPart:
					if part.Text != "" {
						parts = append(parts, &genai.Part{Text: part.Text})
					}
				case core.ToolCallPart:
					var args map[string]any
					if part.ToolCall.Arguments != "" {
						_ = json.Unmarshal([]byte(part.ToolCall.Arguments), &args)
					}
					parts = append(parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							ID:   part.ToolCall.ID,
							Name: part.ToolCall.Name,
							Args: args,
						},
					})
				}
			}
		case core.RoleTool:
			for _, result := range c.ToolResults() {
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID:       result.CallID,
						Name:     result.Name,
						Response: resultResponse(result),
					},
				})
			}
		default:
			// System contents are hoisted into SystemInstruction by the
			// caller; anything else renders as user text.
			if text := c.Text(); text != "" {
				parts = append(parts, &genai.Part{Text: text})
			}
		}

		if len(parts) > 0 {
			out = append(out, &genai.Content{Role: role, Parts: parts})
		}
	}

	return out
}

func resultResponse(result core.ToolResult) map[string]any {
	if result.Status == core.ToolStatusError {
		return map[string]any{"error": result.Error}
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Payload), &payload); err != nil {
		return map[string]any{"result": result.Payload}
	}
	return payload
}

// buildTools converts tool specs to GenAI function declarations.
func buildTools(specs []model.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(specs))
	for i, spec := range specs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  buildSchema(spec.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// buildSchema converts a JSON Schema map to the GenAI schema type.
func buildSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}

	if typeName, ok := schema["type"].(string); ok {
		switch typeName {
		case "string":
			result.Type = genai.TypeString
		case "number":
			result.Type = genai.TypeNumber
		case "integer":
			result.Type = genai.TypeInteger
		case "boolean":
			result.Type = genai.TypeBoolean
		case "array":
			result.Type = genai.TypeArray
		case "object":
			result.Type = genai.TypeObject
		}
	}

	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}

	if enumVal, ok := schema["enum"].([]any); ok {
		for _, e := range enumVal {
			if s, ok := e.(string); ok {
				result.Enum = append(result.Enum, s)
			}
		}
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = make(map[string]*genai.Schema)
		for name, raw := range props {
			if propMap, ok := raw.(map[string]any); ok {
				result.Properties[name] = buildSchema(propMap)
			}
		}
	}

	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []any:
		for _, r := range required {
			if s, ok := r.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		result.Items = buildSchema(items)
	}

	return result
}

// Info returns metadata describing this Google gateway.
func (g *Gateway) Info() model.Info {
	return model.Info{Name: g.opts.Model, Provider: "google"}
}
