// Package decision turns a classification and a reasoning result into the
// three-field envelope returned to callers.
package decision

import (
	"strings"

	"github.com/davidahmann/tally/internal/llm"
	"github.com/davidahmann/tally/internal/policy"
	"github.com/davidahmann/tally/internal/reasoning"
	"github.com/davidahmann/tally/pkg/types"
)

// Refusal texts. They carry no data and depend only on the reason category.
const (
	RefusalPII = "I can't share individual customer information such as contact details, " +
		"identifiers or payment data. Please use approved internal processes for protected " +
		"customer information. I can help with aggregate statistics instead."
	RefusalBulk = "I can't provide bulk extracts of raw customer records. " +
		"I can help with aggregate statistics such as totals and counts instead."
	RefusalLeak = "I can't share that answer because it appeared to contain customer " +
		"identifying information. Please rephrase the question in terms of aggregate figures."
)

// Scanner checks generated text for identifying content.
type Scanner interface {
	ScanOutput(text string) policy.Result
}

// Outcome is the assembled envelope plus the structured detail callers may
// log or persist. Only Envelope goes on the wire.
type Outcome struct {
	Envelope   types.Envelope
	ReasonCode policy.ReasonCode
	RuleID     string
	Path       string
	Cause      llm.Cause
}

// Assembler builds envelopes. It is stateless apart from its scanner.
type Assembler struct {
	scanner Scanner
}

func NewAssembler(scanner Scanner) *Assembler {
	return &Assembler{scanner: scanner}
}

// Assemble packages the final outcome. block and result are nil for refused
// questions. An answer that matches an output rule is replaced by a
// post_hoc_leak refusal.
func (a *Assembler) Assemble(cls policy.Result, block *types.ContextBlock, result *reasoning.Result) Outcome {
	if cls.Refused() {
		return refuse(cls.ReasonCode, cls.RuleID)
	}

	res := ensureResult(block, result)
	if a.scanner != nil {
		if scan := a.scanner.ScanOutput(res.Answer); scan.Refused() {
			out := refuse(policy.ReasonPostHocLeak, scan.RuleID)
			out.Cause = res.Cause
			return out
		}
	}

	return Outcome{
		Envelope: types.Envelope{
			Answer:        res.Answer,
			Decision:      types.DecisionAnswer,
			ReasoningNote: answerNote(res),
		},
		ReasonCode: policy.ReasonNone,
		Path:       res.Path(),
		Cause:      res.Cause,
	}
}

// ensureResult covers an ALLOW classification that arrives without a
// reasoning result by substituting the inability fallback.
func ensureResult(block *types.ContextBlock, result *reasoning.Result) reasoning.Result {
	if result != nil && result.Answer != "" {
		return *result
	}
	var b types.ContextBlock
	if block != nil {
		b = *block
	}
	return reasoning.Result{
		Answer:      reasoning.Fallback("", b),
		Cause:       llm.CauseUnknown,
		Assumptions: []string{reasoning.BaseAssumption},
	}
}

func refuse(code policy.ReasonCode, ruleID string) Outcome {
	return Outcome{
		Envelope: types.Envelope{
			Answer:        RefusalText(code),
			Decision:      types.DecisionRefuse,
			ReasoningNote: refusalNote(code),
		},
		ReasonCode: code,
		RuleID:     ruleID,
		Path:       types.PathNone,
	}
}

// RefusalText returns the fixed refusal message for a reason code.
func RefusalText(code policy.ReasonCode) string {
	switch {
	case code == policy.ReasonPostHocLeak:
		return RefusalLeak
	case code.Category() == "bulk":
		return RefusalBulk
	}
	return RefusalPII
}

func refusalNote(code policy.ReasonCode) string {
	switch code {
	case policy.ReasonPIIEmail:
		return "Refused (reason_code: pii_email): the question contains an email address."
	case policy.ReasonBulkExport:
		return "Refused (reason_code: bulk_export): the question asks for a bulk extract of raw records."
	case policy.ReasonPIIIdentifier:
		return "Refused (reason_code: pii_identifier): the question contains a phone, card or similar identifier."
	case policy.ReasonPIIContact:
		return "Refused (reason_code: pii_contact): the question asks for customer contact or payment fields."
	case policy.ReasonPostHocLeak:
		return "Refused (reason_code: post_hoc_leak): the generated answer matched an identifier pattern and was withheld."
	}
	return "Refused (reason_code: " + string(code) + ")."
}

func answerNote(res reasoning.Result) string {
	var b strings.Builder
	if res.Succeeded {
		b.WriteString("Answered by the live reasoning model")
		if res.Provider != "" {
			b.WriteString(" (" + res.Provider)
			if res.Model != "" {
				b.WriteString("/" + res.Model)
			}
			b.WriteString(")")
		}
		b.WriteString(" using aggregate context only.")
	} else {
		b.WriteString("Fallback used: the reasoning model was unavailable")
		if res.Cause != llm.CauseNone {
			b.WriteString(" (cause: " + string(res.Cause) + ")")
		}
		b.WriteString(", so the answer restates aggregate figures without further reasoning.")
	}
	for _, a := range res.Assumptions {
		b.WriteString(" ")
		b.WriteString(a)
	}
	return b.String()
}
