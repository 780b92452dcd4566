package models

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel implements ChatModel on Anthropic's Messages API. Tool use
// is native; streaming goes through the single-shot adapter.
type AnthropicModel struct {
	Client *anthropic.Client
	Model  string
}

// NewAnthropicModel reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicModel(model string) (*AnthropicModel, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, &AuthenticationError{Provider: "anthropic", Variable: "ANTHROPIC_API_KEY"}
	}
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
		anthropicopt.WithRequestTimeout(60*time.Second),
	)
	return &AnthropicModel{Client: &cl, Model: model}, nil
}

func (a *AnthropicModel) Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.Model),
		MaxTokens:   int64(cfg.MaxTokens),
		Temperature: anthropic.Float(float64(cfg.Temperature)),
		Messages:    toAnthropicMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, def := range tools {
		props, required := schemaParts(def.Parameters)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{Provider: "anthropic", Err: err}
	}

	var text strings.Builder
	reply := &Reply{}
	for _, cb := range msg.Content {
		switch block := cb.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(block.Text)
		case anthropic.ToolUseBlock:
			raw, _ := json.Marshal(block.Input)
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: parseToolArguments(string(raw)),
			})
		}
	}
	reply.Content = text.String()
	return reply, nil
}

func (a *AnthropicModel) CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	return singleShotStream(ctx, a, system, messages, tools, cfg)
}

// toAnthropicMessages renders the transcript into Messages API turns. Tool
// results travel as user-role tool_result blocks tied to the originating
// tool_use ID.
func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: msg.Content},
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: tc.Arguments,
					},
				})
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case RoleTool:
			out = append(out, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: msg.ToolCallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: msg.Content},
						}},
					},
				}},
			})
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}
