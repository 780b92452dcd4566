package agent

import (
	"context"
	"fmt"

	"github.com/voxalytics/voxalytics/pkg/models"
	"github.com/voxalytics/voxalytics/pkg/tools"
)

// Outcome classifies how a run terminated.
type Outcome string

const (
	// OutcomeDone is a clean final answer.
	OutcomeDone Outcome = "done"
	// OutcomeBudgetExceeded means the iteration or step ceiling was hit.
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
	// OutcomeParseRecovered means the model's output matched neither a tool
	// call nor an answer and the raw text was used after one recovery pass.
	OutcomeParseRecovered Outcome = "parse_error_recovered"
	// OutcomeModelError means the model call itself failed mid-run; the run
	// still returns a best-effort answer with a warning.
	OutcomeModelError Outcome = "model_error"
)

// ToolRecord is one executed tool call, in execution order.
type ToolRecord struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Output string         `json:"output"`
}

// RunHooks let a front-end observe a run as it progresses. All fields are
// optional.
type RunHooks struct {
	OnToolCall   func(name string, args map[string]any)
	OnToolResult func(name, output string)
}

func (h RunHooks) toolCall(name string, args map[string]any) {
	if h.OnToolCall != nil {
		h.OnToolCall(name, args)
	}
}

func (h RunHooks) toolResult(name, output string) {
	if h.OnToolResult != nil {
		h.OnToolResult(name, output)
	}
}

// loopResult is the raw product of one run, before reduction.
type loopResult struct {
	Transcript []models.Message
	Records    []ToolRecord
	Outcome    Outcome
	Warning    string
}

// runLoop drives the model/tool cycle until a terminal state. Tool calls
// within one round dispatch sequentially; their results are appended in
// request order. Tool failures never terminate the loop, they return to the
// model as error text.
func runLoop(ctx context.Context, model models.ChatModel, reg *tools.Registry, params Params, question string, hooks RunHooks) loopResult {
	transcript := []models.Message{{Role: models.RoleUser, Content: question}}
	defs := reg.Definitions()
	cfg := models.GenerationConfig{Temperature: params.Temperature, MaxTokens: params.MaxTokens}

	var records []ToolRecord
	iterations := 0
	steps := 0

	finish := func(outcome Outcome, warning string) loopResult {
		return loopResult{Transcript: transcript, Records: records, Outcome: outcome, Warning: warning}
	}
	budget := func(bound string) loopResult {
		warning := fmt.Sprintf("Reached the maximum number of %s (about %d steps). The response may be incomplete.",
			bound, params.StepLimit/2)
		return finish(OutcomeBudgetExceeded, warning)
	}

	for {
		steps++
		if steps > params.StepLimit {
			return budget("steps")
		}

		reply, err := model.Complete(ctx, systemDirective, transcript, defs, cfg)
		if err != nil {
			return finish(OutcomeModelError, fmt.Sprintf("model call failed: %v", err))
		}

		if len(reply.ToolCalls) > 0 {
			transcript = append(transcript, models.Message{
				Role:      models.RoleAssistant,
				Content:   reply.Content,
				ToolCalls: reply.ToolCalls,
			})

			for _, call := range reply.ToolCalls {
				steps++
				if steps > params.StepLimit {
					return budget("steps")
				}

				hooks.toolCall(call.Name, call.Arguments)
				output := tools.Dispatch(ctx, reg, call.Name, call.Arguments)
				hooks.toolResult(call.Name, output)

				records = append(records, ToolRecord{
					Name:   call.Name,
					Input:  call.Arguments,
					Output: output,
				})
				transcript = append(transcript, models.Message{
					Role:       models.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
					ToolName:   call.Name,
				})
			}

			iterations++
			if iterations >= params.MaxIterations {
				return budget("iterations")
			}
			continue
		}

		if reply.Content != "" {
			transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: reply.Content})
			return finish(OutcomeDone, "")
		}

		// Neither a tool call nor an answer. One recovery pass: take the
		// raw text as the answer, degraded but non-crashing.
		transcript = append(transcript, models.Message{Role: models.RoleAssistant, Content: reply.Content})
		return finish(OutcomeParseRecovered, "model output could not be parsed into an action or answer; returning raw text")
	}
}
