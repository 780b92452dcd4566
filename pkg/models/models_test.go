package models

import (
	"context"
	"errors"
	"testing"
)

func TestScriptedModelReplaysSteps(t *testing.T) {
	m := NewScriptedModel(
		ToolStep("call_1", "read_query", map[string]any{"query": "SELECT 1"}),
		TextStep("done"),
	)

	reply, err := m.Complete(context.Background(), "sys", []Message{{Role: RoleUser, Content: "hi"}}, nil, GenerationConfig{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].Name != "read_query" {
		t.Fatalf("unexpected first reply: %+v", reply)
	}

	reply, err = m.Complete(context.Background(), "sys", nil, nil, GenerationConfig{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply.Content != "done" {
		t.Fatalf("unexpected second reply: %q", reply.Content)
	}

	// Script exhausted: empty reply, no error.
	reply, err = m.Complete(context.Background(), "sys", nil, nil, GenerationConfig{})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if reply.Content != "" || len(reply.ToolCalls) != 0 {
		t.Fatalf("expected empty reply after exhaustion, got %+v", reply)
	}
	if len(m.Calls) != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", len(m.Calls))
	}
}

func TestScriptedModelLoopRepeatsLastStep(t *testing.T) {
	m := NewScriptedModel(TextStep("again"))
	m.Loop = true
	for i := 0; i < 3; i++ {
		reply, err := m.Complete(context.Background(), "", nil, nil, GenerationConfig{})
		if err != nil {
			t.Fatalf("Complete returned error: %v", err)
		}
		if reply.Content != "again" {
			t.Fatalf("call %d: unexpected reply %q", i, reply.Content)
		}
	}
}

func TestSingleShotStreamEmitsDoneChunk(t *testing.T) {
	m := NewScriptedModel(ScriptedStep{Reply: Reply{
		Content:   "answer",
		ToolCalls: []ToolCall{{ID: "c1", Name: "list_tables", Arguments: map[string]any{}}},
	}})

	ch, err := m.CompleteStream(context.Background(), "", nil, nil, GenerationConfig{})
	if err != nil {
		t.Fatalf("CompleteStream returned error: %v", err)
	}

	var (
		deltas string
		calls  int
		done   bool
		full   string
	)
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		deltas += chunk.Delta
		if chunk.ToolCall != nil {
			calls++
		}
		if chunk.Done {
			done = true
			full = chunk.FullText
		}
	}
	if !done {
		t.Fatal("stream ended without a Done chunk")
	}
	if deltas != "answer" || full != "answer" || calls != 1 {
		t.Fatalf("unexpected stream result: deltas=%q full=%q calls=%d", deltas, full, calls)
	}
}

func TestSingleShotStreamSurfacesError(t *testing.T) {
	boom := errors.New("boom")
	m := NewScriptedModel(ScriptedStep{Err: boom})

	ch, err := m.CompleteStream(context.Background(), "", nil, nil, GenerationConfig{})
	if err != nil {
		t.Fatalf("CompleteStream returned error: %v", err)
	}
	var last StreamChunk
	for chunk := range ch {
		last = chunk
	}
	if !last.Done || !errors.Is(last.Err, boom) {
		t.Fatalf("expected terminal error chunk, got %+v", last)
	}
}

func TestParseToolArguments(t *testing.T) {
	args := parseToolArguments(`{"query": "SELECT 1", "limit": 5}`)
	if args["query"] != "SELECT 1" {
		t.Fatalf("unexpected args: %v", args)
	}
	if args["limit"].(float64) != 5 {
		t.Fatalf("unexpected limit: %v", args["limit"])
	}

	args = parseToolArguments(`[1, 2]`)
	if _, ok := args["items"]; !ok {
		t.Fatalf("array payload not wrapped: %v", args)
	}

	args = parseToolArguments("not json")
	if args["input"] != "not json" {
		t.Fatalf("raw payload not preserved: %v", args)
	}

	if args := parseToolArguments(""); len(args) != 0 {
		t.Fatalf("empty payload should parse to empty map, got %v", args)
	}
}

func TestNewProviderMissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_KEY", "")
	_, err := NewProvider(context.Background(), "openai", "")
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Provider != "openai" {
		t.Fatalf("unexpected provider in error: %s", authErr.Provider)
	}
}

func TestNewProviderErrorsOnUnknownProvider(t *testing.T) {
	if _, err := NewProvider(context.Background(), "unknown", "model"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProviderAliases(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	m, err := NewProvider(context.Background(), "claude", "")
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	am, ok := m.(*AnthropicModel)
	if !ok {
		t.Fatalf("expected AnthropicModel, got %T", m)
	}
	if am.Model != defaultModels["anthropic"] {
		t.Fatalf("default model not applied: %s", am.Model)
	}
}
