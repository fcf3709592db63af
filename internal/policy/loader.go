package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/tally/internal/crypto"
	"github.com/davidahmann/tally/policies"
)

var (
	ErrNoRules       = errors.New("policy has no rules")
	ErrMissingID     = errors.New("policy_id is required")
	ErrInvalidRule   = errors.New("invalid policy rule")
	ErrDuplicateRule = errors.New("duplicate rule id")
	ErrUnknownKind   = errors.New("unknown rule kind")
	ErrUnknownReason = errors.New("unknown reason code")
)

type LoadedPolicy struct {
	Policy Policy
	Hash   string
	Bytes  []byte
}

// LoadPolicy loads a YAML policy and computes its hash from raw bytes.
func LoadPolicy(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}
	return Parse(data)
}

// LoadDefault returns the embedded default policy.
func LoadDefault() (LoadedPolicy, error) {
	return Parse(policies.DefaultYAML())
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (LoadedPolicy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return LoadedPolicy{}, fmt.Errorf("decode policy: %w", err)
	}
	if err := Validate(p); err != nil {
		return LoadedPolicy{}, err
	}
	return LoadedPolicy{
		Policy: p,
		Hash:   crypto.DigestWithPrefix(data),
		Bytes:  data,
	}, nil
}

// Validate checks structural requirements without compiling patterns.
func Validate(p Policy) error {
	if p.PolicyID == "" {
		return ErrMissingID
	}
	if len(p.Rules) == 0 {
		return ErrNoRules
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for i, r := range p.Rules {
		if r.ID == "" {
			return fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i)
		}
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = struct{}{}
		if !r.ReasonCode.Known() {
			return fmt.Errorf("%w: %q in rule %s", ErrUnknownReason, r.ReasonCode, r.ID)
		}
		switch r.Kind {
		case KindEmail:
		case KindPhrases:
			if len(r.Phrases) == 0 && len(r.Cooccur) == 0 {
				return fmt.Errorf("%w: rule %s lists no phrases", ErrInvalidRule, r.ID)
			}
			for _, group := range r.Cooccur {
				if len(group) == 0 {
					return fmt.Errorf("%w: rule %s has an empty cooccur group", ErrInvalidRule, r.ID)
				}
			}
		case KindPattern:
			if r.Pattern == "" {
				return fmt.Errorf("%w: rule %s has no pattern", ErrInvalidRule, r.ID)
			}
		default:
			return fmt.Errorf("%w: %q in rule %s", ErrUnknownKind, r.Kind, r.ID)
		}
	}
	return nil
}
