package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

// GeminiModel implements ChatModel on Gemini's chat sessions and function
// calling. Gemini does not assign tool-call IDs, so the function name doubles
// as the correlation key.
type GeminiModel struct {
	Client *genai.Client
	Model  string
}

// NewGeminiModel reads GOOGLE_API_KEY (falling back to GEMINI_API_KEY) from
// the environment.
func NewGeminiModel(ctx context.Context, model string) (*GeminiModel, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, &AuthenticationError{Provider: "gemini", Variable: "GOOGLE_API_KEY"}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("init: %w", err)}
	}
	return &GeminiModel{Client: client, Model: model}, nil
}

// Close releases the underlying gRPC connection.
func (g *GeminiModel) Close() error { return g.Client.Close() }

func (g *GeminiModel) Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error) {
	model := g.Client.GenerativeModel(g.Model)
	model.SetTemperature(cfg.Temperature)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, def := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  toGeminiSchema(def.Parameters),
			})
		}
		model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	history, last := toGeminiHistory(messages)
	if len(last) == 0 {
		return nil, &ProviderError{Provider: "gemini", Err: errors.New("no message to send")}
	}
	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &ProviderError{Provider: "gemini", Err: errors.New("empty response")}
	}

	var text strings.Builder
	reply := &Reply{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        p.Name,
				Name:      p.Name,
				Arguments: p.Args,
			})
		}
	}
	reply.Content = text.String()
	return reply, nil
}

func (g *GeminiModel) CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	return singleShotStream(ctx, g, system, messages, tools, cfg)
}

// toGeminiHistory splits the transcript into chat history plus the parts to
// send as the final turn.
func toGeminiHistory(messages []Message) (history []*genai.Content, last []genai.Part) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, genai.FunctionCall{Name: tc.Name, Args: tc.Arguments})
			}
			contents = append(contents, content)
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: "function",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.ToolName,
					Response: map[string]any{"result": msg.Content},
				}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	if len(contents) == 0 {
		return nil, nil
	}
	tail := contents[len(contents)-1]
	return contents[:len(contents)-1], tail.Parts
}

// toGeminiSchema converts a JSON-schema object into the typed genai schema.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	out := &genai.Schema{Type: geminiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(sub)
			} else {
				out.Properties[name] = &genai.Schema{Type: genai.TypeString}
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	switch raw := schema["enum"].(type) {
	case []string:
		out.Enum = raw
	case []any:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	_, required := schemaParts(schema)
	out.Required = required
	return out
}

func geminiType(raw any) genai.Type {
	t, _ := raw.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object", "":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
