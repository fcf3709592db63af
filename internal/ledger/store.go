// Package ledger persists decision records for audit. Records never hold
// the question text, only its digest.
package ledger

import "errors"

var ErrMissingID = errors.New("missing record id")

type Store interface {
	WithTx(fn func(Tx) error) error

	PutPolicyVersion(policy PolicyVersionRecord) error
	GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool)

	PutContext(ctx ContextRecord) error
	GetContext(contextID string) (ContextRecord, bool)

	PutDecision(decision DecisionRecord) error
	GetDecision(decisionID string) (DecisionRecord, bool)
	ListDecisions(limit int) ([]DecisionRecord, error)
}

type Tx interface {
	PutPolicyVersion(policy PolicyVersionRecord) error
	GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool)

	PutContext(ctx ContextRecord) error
	GetContext(contextID string) (ContextRecord, bool)

	PutDecision(decision DecisionRecord) error
	GetDecision(decisionID string) (DecisionRecord, bool)
}

type PolicyVersionRecord struct {
	PolicyHash    string
	PolicyID      string
	PolicyVersion string
	PolicyYAML    string
	CreatedAt     string
}

// ContextRecord holds a rendered context block. Blocks are aggregate-only.
type ContextRecord struct {
	ContextID string
	BodyJSON  []byte
	CreatedAt string
}

type DecisionRecord struct {
	DecisionID     string
	RequestID      string
	CreatedAt      string
	QuestionDigest string
	Decision       string
	ReasonCode     string
	Path           string
	Cause          string
	ContextID      *string
	PolicyHash     string
	BodyJSON       []byte
}

// DefaultListLimit caps ListDecisions when the caller passes no limit.
const DefaultListLimit = 100
