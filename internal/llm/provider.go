// Package llm holds the reasoning providers tally can call and the taxonomy
// their failures are classified into.
package llm

import (
	"context"
	"time"
)

// TimeoutLLMCall bounds a single generation when the caller sets no deadline.
const TimeoutLLMCall = 20 * time.Second

// Provider is one external reasoning capability.
type Provider interface {
	// Name returns the provider identifier (e.g. "cohere", "openai").
	Name() string
	// Generate sends one completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single chat-style generation request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message is one chat turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Response is the text a provider produced.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}

func withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, TimeoutLLMCall)
}
