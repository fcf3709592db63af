package types

// Reasoning paths recorded for answered requests.
const (
	PathLive     = "live"
	PathFallback = "fallback"
	PathNone     = "none"
)

// DecisionRecord is the audit view of one envelope. It never carries the
// question text; QuestionDigest correlates requests instead.
type DecisionRecord struct {
	Schema         string   `json:"schema"`
	DecisionID     string   `json:"decision_id"`
	RequestID      string   `json:"request_id"`
	CreatedAt      string   `json:"created_at"`
	QuestionDigest string   `json:"question_digest"`
	ContextID      string   `json:"context_id,omitempty"`
	Policy         Policy   `json:"policy"`
	Decision       string   `json:"decision"`
	ReasonCode     string   `json:"reason_code"`
	ReasonCodes    []string `json:"reason_codes,omitempty"`
	Path           string   `json:"path"`
	Cause          string   `json:"cause,omitempty"`
	Envelope       Envelope `json:"envelope"`
}

// Policy identifies the classification policy a decision was made under.
type Policy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
}
