package reasoning

import "github.com/davidahmann/tally/internal/llm"

// Outcome is the tagged result of one external call: Succeeded or Failed.
type Outcome interface {
	isOutcome()
}

// Succeeded carries a non-empty model answer.
type Succeeded struct {
	Answer string
}

// Failed carries the classified reason the call could not be used.
type Failed struct {
	Cause llm.Cause
	Err   error
}

func (Succeeded) isOutcome() {}
func (Failed) isOutcome()    {}
