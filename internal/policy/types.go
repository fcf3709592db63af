package policy

// Policy is the on-disk classification policy.
type Policy struct {
	PolicyID      string `yaml:"policy_id"`
	PolicyVersion string `yaml:"policy_version"`
	Rules         []Rule `yaml:"rules"`
}

// Rule is one ordered check. Kind selects how the rule matches:
// "email" looks for an @-delimited token, "phrases" looks for any listed
// phrase as whole words, and "pattern" applies a regular expression.
//
// A phrases rule may also list cooccur groups. It then matches when every
// group has at least one word present anywhere in the text, so "the entire
// database" is caught by [entire] x [database] without listing the phrase.
type Rule struct {
	ID         string     `yaml:"id"`
	ReasonCode ReasonCode `yaml:"reason_code"`
	Kind       string     `yaml:"kind"`
	Phrases    []string   `yaml:"phrases"`
	Cooccur    [][]string `yaml:"cooccur"`
	Pattern    string     `yaml:"pattern"`
	Luhn       bool       `yaml:"luhn"`
	PostHoc    bool       `yaml:"post_hoc"`
}

const (
	KindEmail   = "email"
	KindPhrases = "phrases"
	KindPattern = "pattern"
)

// ReasonCode is the short machine tag explaining a classification.
type ReasonCode string

const (
	ReasonNone          ReasonCode = "none"
	ReasonPIIEmail      ReasonCode = "pii_email"
	ReasonBulkExport    ReasonCode = "bulk_export"
	ReasonPIIIdentifier ReasonCode = "pii_identifier"
	ReasonPIIContact    ReasonCode = "pii_contact"
	ReasonPostHocLeak   ReasonCode = "post_hoc_leak"
)

// Known reports whether c is one of the reason codes a rule may carry.
func (c ReasonCode) Known() bool {
	switch c {
	case ReasonPIIEmail, ReasonBulkExport, ReasonPIIIdentifier, ReasonPIIContact:
		return true
	}
	return false
}

// Category groups reason codes for refusal wording.
func (c ReasonCode) Category() string {
	switch c {
	case ReasonBulkExport:
		return "bulk"
	case ReasonNone, "":
		return ""
	}
	return "pii"
}

// Verdict is the classifier outcome.
type Verdict string

const (
	VerdictAllow  Verdict = "ALLOW"
	VerdictRefuse Verdict = "REFUSE"
)

// Result is the classification of one text.
type Result struct {
	Verdict        Verdict
	ReasonCode     ReasonCode
	MatchedPattern string
	RuleID         string
	// ReasonCodes lists POLICY_MATCH:<rule id> for every rule that matched.
	ReasonCodes []string
}

// Refused reports whether the result forbids answering.
func (r Result) Refused() bool { return r.Verdict == VerdictRefuse }
