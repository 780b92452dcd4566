package agent

import "github.com/voxalytics/voxalytics/pkg/models"

// longAnswerFloor is the length past which an answer with no recorded tool
// calls is still reported as backed by at least one. The heuristic is an
// approximation kept for downstream UIs; Reduction.Floored marks when it
// fired so audits can discount it.
const longAnswerFloor = 100

// Reduction is the distilled view of a finished (or truncated) transcript.
type Reduction struct {
	FinalText   string
	ToolRecords []ToolRecord
	ToolCount   int
	Floored     bool
}

// Reduce collapses a transcript and its execution records into the fields
// front-ends render. It is a pure function: no model or tool calls, and it
// tolerates transcripts truncated by a budget or parse error.
func Reduce(transcript []models.Message, records []ToolRecord) Reduction {
	red := Reduction{
		ToolRecords: records,
		ToolCount:   len(records),
	}

	for i := len(transcript) - 1; i >= 0; i-- {
		msg := transcript[i]
		if msg.Role == models.RoleAssistant && msg.Content != "" {
			red.FinalText = msg.Content
			break
		}
	}

	if red.ToolCount == 0 && len(red.FinalText) > longAnswerFloor {
		red.ToolCount = 1
		red.Floored = true
	}
	return red
}
