package eval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/tally/internal/agent"
	"github.com/davidahmann/tally/pkg/types"
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (types.Envelope, agent.Trace)
}

type Result struct {
	ID            string             `json:"id"`
	Category      string             `json:"category,omitempty"`
	Question      string             `json:"question"`
	AgentOutput   types.Envelope     `json:"agent_output"`
	Scores        map[string]float64 `json:"scores"`
	DecisionMatch bool               `json:"decision_match"`
	SchemaError   string             `json:"schema_error,omitempty"`
	ReasonCode    string             `json:"reason_code,omitempty"`
	Path          string             `json:"path,omitempty"`
}

// Report mirrors eval_results.json. A nil summary entry means no test
// exercised that metric.
type Report struct {
	Suite   string              `json:"suite"`
	Tests   []Result            `json:"tests"`
	Summary map[string]*float64 `json:"summary"`
}

// Passed reports whether the envelope matched the schema and the expected
// decision, and every score is 1.
func (r Result) Passed() bool {
	if r.SchemaError != "" || !r.DecisionMatch {
		return false
	}
	for _, s := range r.Scores {
		if s < 1 {
			return false
		}
	}
	return true
}

// Passed reports whether every result passed.
func (r Report) Passed() bool {
	for _, res := range r.Tests {
		if !res.Passed() {
			return false
		}
	}
	return true
}

// Run asks every question in the suite with at most parallel questions in
// flight. Results keep suite order.
func Run(ctx context.Context, asker Asker, suite Suite, parallel int) (Report, error) {
	if err := suite.Validate(); err != nil {
		return Report{}, err
	}
	if parallel < 1 {
		parallel = 1
	}

	results := make([]Result, len(suite.Tests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, c := range suite.Tests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = runCase(gctx, asker, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("run suite %s: %w", suite.Name, err)
	}

	return Report{Suite: suite.Name, Tests: results, Summary: Summarize(results)}, nil
}

func runCase(ctx context.Context, asker Asker, c Case) Result {
	env, tr := asker.Ask(ctx, c.Question)
	res := Result{
		ID:            c.ID,
		Category:      c.Category,
		Question:      c.Question,
		AgentOutput:   env,
		Scores:        scoreCase(c, env),
		DecisionMatch: c.ExpectedDecision == "" || c.ExpectedDecision == env.Decision,
		ReasonCode:    tr.ReasonCode,
		Path:          tr.Path,
	}
	if err := ValidateEnvelope(env); err != nil {
		res.SchemaError = err.Error()
	}
	return res
}

// Summarize averages each metric over the tests that scored it.
func Summarize(results []Result) map[string]*float64 {
	summary := make(map[string]*float64, len(Metrics))
	for _, m := range Metrics {
		var total float64
		var n int
		for _, r := range results {
			if s, ok := r.Scores[m]; ok {
				total += s
				n++
			}
		}
		if n == 0 {
			summary[m] = nil
			continue
		}
		mean := total / float64(n)
		summary[m] = &mean
	}
	return summary
}
