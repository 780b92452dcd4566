package models

import "context"

// singleShotStream adapts a Complete call into the streaming contract for
// providers without a native streaming bridge: one content fragment per
// completed generation, tool calls as dedicated chunks, and a terminal Done
// chunk in every case so callers never block on an empty stream.
func singleShotStream(ctx context.Context, m ChatModel, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 4)
	go func() {
		defer close(ch)

		reply, err := m.Complete(ctx, system, messages, tools, cfg)
		if err != nil {
			ch <- StreamChunk{Err: err, Done: true}
			return
		}
		if reply.Content != "" {
			ch <- StreamChunk{Delta: reply.Content}
		}
		for i := range reply.ToolCalls {
			tc := reply.ToolCalls[i]
			ch <- StreamChunk{ToolCall: &tc}
		}
		ch <- StreamChunk{Done: true, FullText: reply.Content}
	}()
	return ch, nil
}
