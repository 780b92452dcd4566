package slackbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxalytics/voxalytics/pkg/agent"
)

func TestStripMention(t *testing.T) {
	assert.Equal(t, "how many players?", stripMention("<@U123ABC> how many players?", "U123ABC"))
	assert.Equal(t, "hello", stripMention("<@U999XYZ> hello", ""))
	assert.Equal(t, "no mention here", stripMention("no mention here", "U123ABC"))
}

func TestFormatResultWithSteps(t *testing.T) {
	res := &agent.Result{
		Answer:    "There are 7 distinct classes.",
		ToolCount: 2,
		ToolRecords: []agent.ToolRecord{
			{Name: "describe_table"},
			{Name: "read_query"},
		},
	}
	out := FormatResult(res)
	require.Contains(t, out, "Analysis Steps (2 queries)")
	assert.Contains(t, out, "1. describe_table")
	assert.Contains(t, out, "2. read_query")
	assert.Contains(t, out, "*Answer*: There are 7 distinct classes.")
}

func TestFormatResultPlainAnswer(t *testing.T) {
	assert.Equal(t, "42.", FormatResult(&agent.Result{Answer: "42."}))
}

func TestFormatResultIncludesWarning(t *testing.T) {
	out := FormatResult(&agent.Result{
		Answer:  "Partial answer.",
		Warning: "budget reached",
	})
	assert.Contains(t, out, "budget reached")
}
