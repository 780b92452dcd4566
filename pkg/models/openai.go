package models

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIModel drives the OpenAI chat completions API with tool calling and
// native token streaming.
type OpenAIModel struct {
	Client *openai.Client
	Model  string
}

// NewOpenAIModel reads OPENAI_API_KEY (falling back to OPENAI_KEY) from the
// environment.
func NewOpenAIModel(model string) (*OpenAIModel, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	if apiKey == "" {
		return nil, &AuthenticationError{Provider: "openai", Variable: "OPENAI_API_KEY"}
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &OpenAIModel{Client: openai.NewClientWithConfig(cfg), Model: model}, nil
}

func (o *OpenAIModel) Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, o.buildRequest(system, messages, tools, cfg, false))
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Err: errors.New("no choices in response")}
	}

	choice := resp.Choices[0].Message
	reply := &Reply{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseToolArguments(tc.Function.Arguments),
		})
	}
	return reply, nil
}

func (o *OpenAIModel) CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	stream, err := o.Client.CreateChatCompletionStream(ctx, o.buildRequest(system, messages, tools, cfg, true))
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		defer stream.Close()

		var full strings.Builder
		// Tool-call fragments arrive keyed by choice index; name and
		// argument pieces accumulate until the stream ends.
		drafts := map[int]*toolCallDraft{}
		var order []int

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ch <- StreamChunk{Err: &ProviderError{Provider: "openai", Err: err}, Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				full.WriteString(delta.Content)
				ch <- StreamChunk{Delta: delta.Content}
			}
			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				draft, ok := drafts[idx]
				if !ok {
					draft = &toolCallDraft{}
					drafts[idx] = draft
					order = append(order, idx)
				}
				if tc.ID != "" {
					draft.id = tc.ID
				}
				draft.name += tc.Function.Name
				draft.args.WriteString(tc.Function.Arguments)
			}
		}

		for _, idx := range order {
			draft := drafts[idx]
			ch <- StreamChunk{ToolCall: &ToolCall{
				ID:        draft.id,
				Name:      draft.name,
				Arguments: parseToolArguments(draft.args.String()),
			}}
		}
		ch <- StreamChunk{Done: true, FullText: full.String()}
	}()
	return ch, nil
}

type toolCallDraft struct {
	id   string
	name string
	args strings.Builder
}

func (o *OpenAIModel) buildRequest(system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      stream,
	}

	if system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, toOpenAIMessage(msg))
	}
	for _, def := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return req
}

func toOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	switch msg.Role {
	case RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.ToolName,
		}
	case RoleAssistant:
		out := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: encodeToolArguments(tc.Arguments),
				},
			})
		}
		return out
	default:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}
}
