package agent

import "errors"

// ErrNotInitialized reports programmer misuse: ProcessQuery before a
// successful Initialize. Operational failures during a run never surface as
// errors; they land in Result.Warning.
var ErrNotInitialized = errors.New("agent: not initialized")

// ErrEmptyQuery reports a blank question.
var ErrEmptyQuery = errors.New("agent: query is empty")
