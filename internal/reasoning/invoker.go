// Package reasoning calls the external reasoning capability once per request
// and collapses every failure into a deterministic fallback answer.
package reasoning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidahmann/tally/internal/llm"
	tallyotel "github.com/davidahmann/tally/internal/otel"
	"github.com/davidahmann/tally/pkg/types"
)

var tracer = tallyotel.Tracer("github.com/davidahmann/tally/internal/reasoning")

// SystemPolicy is the instruction text sent with every request.
const SystemPolicy = `You are a secure subscription insights assistant.
Use ONLY the aggregate figures given in the context. Never invent numbers that are not in the context.
If the question is ambiguous, state how you interpreted it in one sentence starting with "Assumption:".
Never reveal, guess or construct email addresses, phone numbers, card numbers or any other customer identifier.
Never list individual customers or accounts. Answer in plain text without markup.`

const (
	DefaultTimeout     = 20 * time.Second
	DefaultMaxTokens   = 200
	DefaultTemperature = 0.2
)

// Result is what the invoker hands to the decision assembler. Answer is
// never empty.
type Result struct {
	Answer      string
	Succeeded   bool
	Cause       llm.Cause
	Provider    string
	Model       string
	Elapsed     time.Duration
	Assumptions []string
}

// Path reports which path produced the answer.
func (r Result) Path() string {
	if r.Succeeded {
		return types.PathLive
	}
	return types.PathFallback
}

// Invoker makes one bounded call per request. It holds only configuration
// and is safe for concurrent use.
type Invoker struct {
	provider    llm.Provider
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// Option configures an Invoker.
type Option func(*Invoker)

func WithModel(model string) Option { return func(i *Invoker) { i.model = model } }

func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(i *Invoker) {
		if n > 0 {
			i.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option { return func(i *Invoker) { i.temperature = t } }

// New returns an invoker for provider. A nil provider always falls back.
func New(provider llm.Provider, opts ...Option) *Invoker {
	i := &Invoker{
		provider:    provider,
		timeout:     DefaultTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(i)
	}
	if i.model == "" && provider != nil {
		i.model = llm.DefaultModel(provider.Name())
	}
	return i
}

// ProviderName returns the configured provider name, or "none".
func (i *Invoker) ProviderName() string {
	if i.provider == nil {
		return llm.ProviderNone
	}
	return i.provider.Name()
}

// Invoke asks the provider once. It never returns an error: any failure,
// including a panic inside the provider, produces the fallback answer with
// Succeeded=false.
func (i *Invoker) Invoke(ctx context.Context, question string, block types.ContextBlock, systemPolicy string) Result {
	provider := i.ProviderName()
	ctx, span := tracer.Start(ctx, "reasoning.invoke",
		trace.WithAttributes(
			tallyotel.GenAISystem.String(provider),
			tallyotel.GenAIRequestModel.String(i.model),
			tallyotel.ContextID.String(block.ContextID),
		))
	defer span.End()

	start := time.Now()
	outcome := i.call(ctx, question, block, systemPolicy)
	res := Result{
		Provider:    provider,
		Model:       i.model,
		Elapsed:     time.Since(start),
		Assumptions: Assumptions(question),
	}

	switch o := outcome.(type) {
	case Succeeded:
		res.Answer = o.Answer
		res.Succeeded = true
	case Failed:
		res.Answer = Fallback(question, block)
		res.Cause = o.Cause
		log.Warn().
			Str("provider", provider).
			Str("model", i.model).
			Str("cause", string(o.Cause)).
			Dur("elapsed", res.Elapsed).
			Func(tallyotel.LogTraceFields(ctx)).
			Msg("reasoning call failed, using fallback")
	}

	outcomeLabel := types.PathLive
	if !res.Succeeded {
		outcomeLabel = string(res.Cause)
	}
	span.SetAttributes(
		attribute.String("tally.path", res.Path()),
		tallyotel.Cause.String(string(res.Cause)),
	)
	tallyotel.RecordReasoning(ctx, provider, outcomeLabel, res.Elapsed)
	return res
}

// call runs the provider in its own goroutine so a provider that ignores
// its context cannot hold the request past the timeout. The result channel
// is buffered, so an abandoned call finishes without blocking.
func (i *Invoker) call(ctx context.Context, question string, block types.ContextBlock, systemPolicy string) Outcome {
	if i.provider == nil {
		return Failed{Cause: llm.CauseUnconfigured, Err: llm.ErrUnconfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	req := &llm.Request{
		Model:       i.model,
		System:      systemPolicy,
		Messages:    []llm.Message{{Role: "user", Content: UserPrompt(question, block)}},
		Temperature: i.temperature,
		MaxTokens:   i.maxTokens,
	}

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Failed{Cause: llm.CausePanic, Err: fmt.Errorf("%w: %v", llm.ErrProviderPanic, r)}
			}
		}()
		done <- generate(ctx, i.provider, req)
	}()

	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		err := ctx.Err()
		return Failed{Cause: llm.Classify(err), Err: err}
	}
}

func generate(ctx context.Context, provider llm.Provider, req *llm.Request) Outcome {
	resp, err := provider.Generate(ctx, req)
	if err != nil {
		return Failed{Cause: llm.Classify(err), Err: err}
	}
	if resp == nil {
		return Failed{Cause: llm.CauseMalformed, Err: llm.ErrMalformedResponse}
	}
	answer := Sanitize(resp.Content)
	if answer == "" {
		return Failed{Cause: llm.CauseMalformed, Err: llm.ErrMalformedResponse}
	}
	return Succeeded{Answer: answer}
}

// UserPrompt renders the user turn. The question and the context block are
// kept in separate sections; the block itself never embeds the question.
func UserPrompt(question string, block types.ContextBlock) string {
	return "Question:\n" + question +
		"\n\nContext:\n" + block.Text +
		"\nAnswer clearly and concisely, grounded only in this context."
}
