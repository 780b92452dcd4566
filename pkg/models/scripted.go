package models

import (
	"context"
	"sync"
)

// ScriptedStep is one canned model turn.
type ScriptedStep struct {
	Reply Reply
	Err   error
}

// ScriptedModel replays a fixed sequence of turns. It is the stand-in model
// for tests and the offline demo mode: no network, fully deterministic.
type ScriptedModel struct {
	Steps []ScriptedStep
	// Loop replays the last step forever once the script runs out instead
	// of returning an exhaustion reply.
	Loop bool

	mu    sync.Mutex
	next  int
	Calls []CallRecord
}

// CallRecord captures what the agent asked for on one turn, for assertions.
type CallRecord struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
	Config   GenerationConfig
}

func NewScriptedModel(steps ...ScriptedStep) *ScriptedModel {
	return &ScriptedModel{Steps: steps}
}

// TextStep is a convenience for a plain final-answer turn.
func TextStep(content string) ScriptedStep {
	return ScriptedStep{Reply: Reply{Content: content}}
}

// ToolStep is a convenience for a turn that requests one tool call.
func ToolStep(id, name string, args map[string]any) ScriptedStep {
	return ScriptedStep{Reply: Reply{ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: args}}}}
}

func (s *ScriptedModel) Complete(_ context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, CallRecord{
		System:   system,
		Messages: append([]Message(nil), messages...),
		Tools:    tools,
		Config:   cfg,
	})

	if len(s.Steps) == 0 {
		return &Reply{}, nil
	}
	idx := s.next
	if idx >= len(s.Steps) {
		if !s.Loop {
			return &Reply{}, nil
		}
		idx = len(s.Steps) - 1
	} else {
		s.next++
	}

	step := s.Steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	reply := step.Reply
	return &reply, nil
}

func (s *ScriptedModel) CompleteStream(ctx context.Context, system string, messages []Message, tools []ToolDefinition, cfg GenerationConfig) (<-chan StreamChunk, error) {
	return singleShotStream(ctx, s, system, messages, tools, cfg)
}
