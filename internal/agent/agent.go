// Package agent runs one question through classification, context
// building, reasoning and assembly, and records the decision.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/contextblock"
	"github.com/davidahmann/tally/internal/crypto"
	"github.com/davidahmann/tally/internal/decision"
	"github.com/davidahmann/tally/internal/ledger"
	tallyotel "github.com/davidahmann/tally/internal/otel"
	"github.com/davidahmann/tally/internal/policy"
	"github.com/davidahmann/tally/internal/reasoning"
	"github.com/davidahmann/tally/pkg/types"
)

var tracer = tallyotel.Tracer("github.com/davidahmann/tally/internal/agent")

// Classifier decides whether a question may proceed and scans answers
// before they leave.
type Classifier interface {
	Classify(question string) policy.Result
	ScanOutput(text string) policy.Result
	Policy() types.Policy
}

// Snapshotter supplies the current aggregates.
type Snapshotter interface {
	Snapshot() aggregate.Snapshot
}

// Reasoner produces an answer for an allowed question. It never fails.
type Reasoner interface {
	Invoke(ctx context.Context, question string, block types.ContextBlock, systemPolicy string) reasoning.Result
}

// Trace is the structured detail behind one envelope. It is not part of the
// wire contract.
type Trace struct {
	RequestID      string
	DecisionID     string
	QuestionDigest string
	ContextID      string
	ReasonCode     string
	RuleID         string
	Path           string
	Cause          string
}

type Agent struct {
	classifier   Classifier
	aggregates   Snapshotter
	reasoner     Reasoner
	assembler    *decision.Assembler
	ledger       ledger.Store
	systemPolicy string
	now          func() time.Time
	newID        func() string
}

type Option func(*Agent)

// WithLedger records every decision in s. Write failures are logged only.
func WithLedger(s ledger.Store) Option { return func(a *Agent) { a.ledger = s } }

func WithSystemPolicy(p string) Option { return func(a *Agent) { a.systemPolicy = p } }

func WithClock(now func() time.Time) Option { return func(a *Agent) { a.now = now } }

func WithRequestIDs(next func() string) Option { return func(a *Agent) { a.newID = next } }

func New(classifier Classifier, aggregates Snapshotter, reasoner Reasoner, opts ...Option) *Agent {
	a := &Agent{
		classifier:   classifier,
		aggregates:   aggregates,
		reasoner:     reasoner,
		assembler:    decision.NewAssembler(classifier),
		systemPolicy: reasoning.SystemPolicy,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Context renders the context block for the current aggregates.
func (a *Agent) Context() types.ContextBlock {
	return contextblock.Build(a.aggregates.Snapshot())
}

func (a *Agent) Policy() types.Policy {
	return a.classifier.Policy()
}

// Ask answers one question. The envelope is always well formed; refused
// questions never reach the context builder or the reasoning call.
func (a *Agent) Ask(ctx context.Context, question string) (types.Envelope, Trace) {
	start := a.now()
	tr := Trace{
		RequestID:      a.newID(),
		QuestionDigest: crypto.DigestText(question),
	}

	ctx, span := tracer.Start(ctx, "agent.ask", trace.WithAttributes(tallyotel.RequestID.String(tr.RequestID)))
	defer span.End()

	cls := a.classify(ctx, question)

	var (
		block  *types.ContextBlock
		result *reasoning.Result
	)
	if !cls.Refused() {
		b := a.build(ctx)
		res := a.reasoner.Invoke(ctx, question, b, a.systemPolicy)
		block, result = &b, &res
		tr.ContextID = b.ContextID
	}

	out := a.assemble(ctx, cls, block, result)
	tr.ReasonCode = string(out.ReasonCode)
	tr.RuleID = out.RuleID
	tr.Path = out.Path
	tr.Cause = string(out.Cause)

	reasonCodes := append([]string(nil), cls.ReasonCodes...)
	if out.ReasonCode == policy.ReasonPostHocLeak && out.RuleID != "" {
		reasonCodes = append(reasonCodes, "POST_HOC_MATCH:"+out.RuleID)
	}
	tr.DecisionID = a.record(ctx, tr, reasonCodes, out, block, start)

	span.SetAttributes(
		tallyotel.Decision.String(out.Envelope.Decision),
		tallyotel.ReasonCode.String(tr.ReasonCode),
		tallyotel.Path.String(tr.Path),
	)
	tallyotel.RecordDecision(ctx, out.Envelope.Decision, tr.ReasonCode, tr.Path)

	log.Info().
		Str("request_id", tr.RequestID).
		Str("question_digest", tr.QuestionDigest).
		Str("decision", out.Envelope.Decision).
		Str("reason_code", tr.ReasonCode).
		Str("path", tr.Path).
		Str("cause", tr.Cause).
		Int64("duration_ms", a.now().Sub(start).Milliseconds()).
		Func(tallyotel.LogTraceFields(ctx)).
		Msg("question answered")

	return out.Envelope, tr
}

func (a *Agent) classify(ctx context.Context, question string) policy.Result {
	_, span := tracer.Start(ctx, "policy.classify")
	defer span.End()
	cls := a.classifier.Classify(question)
	span.SetAttributes(tallyotel.ReasonCode.String(string(cls.ReasonCode)))
	return cls
}

func (a *Agent) build(ctx context.Context) types.ContextBlock {
	_, span := tracer.Start(ctx, "contextblock.build")
	defer span.End()
	b := contextblock.Build(a.aggregates.Snapshot())
	span.SetAttributes(tallyotel.ContextID.String(b.ContextID))
	return b
}

func (a *Agent) assemble(ctx context.Context, cls policy.Result, block *types.ContextBlock, result *reasoning.Result) decision.Outcome {
	_, span := tracer.Start(ctx, "decision.assemble")
	defer span.End()
	out := a.assembler.Assemble(cls, block, result)
	span.SetAttributes(tallyotel.Decision.String(out.Envelope.Decision))
	return out
}

// record builds the ledger record and writes it when a ledger is
// configured. It returns the decision id, or "" when the record could not
// be built.
func (a *Agent) record(ctx context.Context, tr Trace, reasonCodes []string, out decision.Outcome, block *types.ContextBlock, start time.Time) string {
	rec, err := decision.BuildRecord(decision.RecordInput{
		RequestID:      tr.RequestID,
		QuestionDigest: tr.QuestionDigest,
		ContextID:      tr.ContextID,
		Policy:         a.classifier.Policy(),
		ReasonCodes:    reasonCodes,
		Outcome:        out,
		CreatedAt:      start.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Error().Err(err).Str("request_id", tr.RequestID).Func(tallyotel.LogTraceFields(ctx)).Msg("build decision record")
		return ""
	}
	if a.ledger != nil {
		if err := ledger.RecordDecision(a.ledger, rec, block); err != nil {
			log.Warn().Err(err).
				Str("request_id", tr.RequestID).
				Str("decision_id", rec.DecisionID).
				Func(tallyotel.LogTraceFields(ctx)).
				Msg("ledger write failed")
		}
	}
	return rec.DecisionID
}
