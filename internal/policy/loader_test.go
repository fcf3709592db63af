package policy

import (
	"os"
	"testing"

	"github.com/davidahmann/tally/internal/crypto"
	"github.com/davidahmann/tally/policies"
)

func TestLoadPolicy(t *testing.T) {
	loaded, err := LoadPolicy("../../policies/default.yaml")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}

	if loaded.Policy.PolicyID == "" {
		t.Fatalf("policy id missing")
	}

	data, err := os.ReadFile("../../policies/default.yaml")
	if err != nil {
		t.Fatalf("read policy: %v", err)
	}

	expected := crypto.DigestWithPrefix(data)
	if loaded.Hash != expected {
		t.Fatalf("policy hash mismatch: got %s want %s", loaded.Hash, expected)
	}
}

func TestLoadDefaultMatchesFile(t *testing.T) {
	loaded, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if loaded.Hash != crypto.DigestWithPrefix(policies.DefaultYAML()) {
		t.Fatalf("embedded hash mismatch")
	}
	if loaded.Policy.Rules[0].ReasonCode != ReasonPIIEmail {
		t.Fatalf("expected email rule first, got %s", loaded.Policy.Rules[0].ReasonCode)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":        "policy_id: [",
		"no id":           "rules:\n  - id: a\n    reason_code: pii_email\n    kind: email\n",
		"no rules":        "policy_id: p\n",
		"unknown kind":    "policy_id: p\nrules:\n  - id: a\n    reason_code: pii_email\n    kind: fuzzy\n",
		"unknown reason":  "policy_id: p\nrules:\n  - id: a\n    reason_code: maybe\n    kind: email\n",
		"empty phrases":   "policy_id: p\nrules:\n  - id: a\n    reason_code: bulk_export\n    kind: phrases\n",
		"empty pattern":   "policy_id: p\nrules:\n  - id: a\n    reason_code: pii_identifier\n    kind: pattern\n",
		"duplicate id":    "policy_id: p\nrules:\n  - id: a\n    reason_code: pii_email\n    kind: email\n  - id: a\n    reason_code: pii_email\n    kind: email\n",
		"missing rule id": "policy_id: p\nrules:\n  - reason_code: pii_email\n    kind: email\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
