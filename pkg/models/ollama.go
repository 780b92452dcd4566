package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

// OllamaModel implements ChatModel against a local Ollama daemon. Requires a
// model pulled with tool-calling support.
type OllamaModel struct {
	Client *ollama.Client
	Model  string
}

// NewOllamaModel targets OLLAMA_HOST, defaulting to the daemon's standard
// local port. No credential is involved.
func NewOllamaModel(model string) (*OllamaModel, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)}
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}
	return &OllamaModel{Client: ollama.NewClient(u, httpClient), Model: model}, nil
}

func (o *OllamaModel) Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error) {
	req, err := o.buildRequest(system, messages, tools, cfg, false)
	if err != nil {
		return nil, err
	}

	var (
		text  strings.Builder
		calls []ToolCall
	)
	err = o.Client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		for _, tc := range resp.Message.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        tc.Function.Name,
				Name:      tc.Function.Name,
				Arguments: map[string]any(tc.Function.Arguments),
			})
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: err}
	}
	return &Reply{Content: text.String(), ToolCalls: calls}, nil
}

func (o *OllamaModel) CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	req, err := o.buildRequest(system, messages, tools, cfg, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)

		var (
			full  strings.Builder
			calls []ToolCall
		)
		err := o.Client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
			if resp.Message.Content != "" {
				full.WriteString(resp.Message.Content)
				ch <- StreamChunk{Delta: resp.Message.Content}
			}
			for _, tc := range resp.Message.ToolCalls {
				calls = append(calls, ToolCall{
					ID:        tc.Function.Name,
					Name:      tc.Function.Name,
					Arguments: map[string]any(tc.Function.Arguments),
				})
			}
			return nil
		})
		if err != nil {
			ch <- StreamChunk{Err: &ProviderError{Provider: "ollama", Err: err}, Done: true}
			return
		}
		for i := range calls {
			ch <- StreamChunk{ToolCall: &calls[i]}
		}
		ch <- StreamChunk{Done: true, FullText: full.String()}
	}()
	return ch, nil
}

func (o *OllamaModel) buildRequest(system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig, stream bool) (*ollama.ChatRequest, error) {
	req := &ollama.ChatRequest{
		Model:  o.Model,
		Stream: &stream,
		Options: map[string]any{
			"temperature": float64(cfg.Temperature),
			"num_predict": cfg.MaxTokens,
		},
	}

	if system != "" {
		req.Messages = append(req.Messages, ollama.Message{Role: "system", Content: system})
	}
	for _, msg := range messages {
		out := ollama.Message{Role: msg.Role, Content: msg.Content}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ollama.ToolCall{
				Function: ollama.ToolCallFunction{
					Name:      tc.Name,
					Arguments: ollama.ToolCallFunctionArguments(tc.Arguments),
				},
			})
		}
		req.Messages = append(req.Messages, out)
	}

	if len(tools) > 0 {
		parsed, err := toOllamaTools(tools)
		if err != nil {
			return nil, &ProviderError{Provider: "ollama", Err: err}
		}
		req.Tools = parsed
	}
	return req, nil
}

// toOllamaTools goes through JSON rather than the api package's nested tool
// structs, whose field layout shifts between releases.
func toOllamaTools(tools []ToolDefinition) (ollama.Tools, error) {
	specs := make([]map[string]any, 0, len(tools))
	for _, def := range tools {
		specs = append(specs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.Parameters,
			},
		})
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return nil, err
	}
	var out ollama.Tools
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
