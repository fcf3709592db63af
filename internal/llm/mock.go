package llm

import (
	"context"
	"fmt"
	"strings"
)

// FuncProvider adapts a function to Provider. Tests use it to script
// successes, failures, delays and panics.
type FuncProvider struct {
	ProviderName string
	Fn           func(ctx context.Context, req *Request) (*Response, error)
}

func (p FuncProvider) Name() string {
	if p.ProviderName == "" {
		return "func"
	}
	return p.ProviderName
}

func (p FuncProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	return p.Fn(ctx, req)
}

// EchoProvider answers offline by restating the aggregate lines ("- label:
// value") found in the last user message. It backs reasoning.provider=mock.
type EchoProvider struct{}

func (EchoProvider) Name() string { return "mock" }

func (EchoProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	for _, m := range req.Messages {
		if m.Role == "user" {
			last = m.Content
		}
	}
	var facts []string
	for _, line := range strings.Split(last, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			facts = append(facts, strings.TrimPrefix(line, "- "))
		}
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("mock provider: no context lines: %w", ErrMalformedResponse)
	}
	return &Response{
		Content:      "From the aggregate data: " + strings.Join(facts, "; ") + ".",
		FinishReason: "stop",
		Model:        req.Model,
	}, nil
}

// unconfiguredProvider stands in when a provider is selected but cannot be
// used. Every call fails with ErrUnconfigured so the invoker falls back.
type unconfiguredProvider struct {
	name   string
	reason string
}

func (p unconfiguredProvider) Name() string { return p.name }

func (p unconfiguredProvider) Generate(context.Context, *Request) (*Response, error) {
	return nil, fmt.Errorf("%s: %s: %w", p.name, p.reason, ErrUnconfigured)
}
