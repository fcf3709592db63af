package reasoning

import (
	"strings"
	"unicode"

	"github.com/davidahmann/tally/internal/contextblock"
	"github.com/davidahmann/tally/pkg/types"
)

// lookups maps question phrasing onto the facts that answer it. A question
// matching at least one entry is treated as a simple aggregate lookup.
var lookups = []struct {
	phrases []string
	keys    []string
}{
	{
		phrases: []string{"mrr", "monthly recurring revenue", "recurring revenue", "monthly revenue"},
		keys:    []string{contextblock.KeyTotalActiveMRR},
	},
	{
		phrases: []string{"renew", "renewal", "renewing", "auto renew", "at risk", "churn", "lapse"},
		keys:    []string{contextblock.KeyNonRenewingActiveMRR, contextblock.KeyNonRenewingActiveCount},
	},
	{
		phrases: []string{"enterprise"},
		keys:    []string{contextblock.KeyEnterpriseCount},
	},
	{
		phrases: []string{"professional"},
		keys:    []string{contextblock.KeyProfessionalCount},
	},
	{
		phrases: []string{"arr", "annual revenue", "annual recurring revenue", "yearly revenue"},
		keys:    []string{contextblock.KeyTotalActiveARR},
	},
	{
		phrases: []string{"active subscriptions", "active customers", "active accounts", "how many active"},
		keys:    []string{contextblock.KeyActiveCount},
	},
	{
		phrases: []string{"inactive", "churned", "cancelled", "canceled"},
		keys:    []string{contextblock.KeyInactiveCount},
	},
	{
		phrases: []string{"outstanding", "balance", "unpaid", "owed", "receivable"},
		keys:    []string{contextblock.KeyOutstandingBalance},
	},
	{
		phrases: []string{"seat", "seats", "utilization", "utilisation"},
		keys:    []string{contextblock.KeySeatsPurchased, contextblock.KeySeatsUsed},
	},
	{
		phrases: []string{"how many subscriptions", "how many customers", "total subscriptions", "number of subscriptions", "number of customers"},
		keys:    []string{contextblock.KeySubscriptions},
	},
}

// Fallback builds the deterministic answer used when the external call
// fails. A simple aggregate lookup gets the matching facts restated verbatim;
// anything else gets an inability statement followed by the available facts.
// The output depends only on the question and the block.
func Fallback(question string, block types.ContextBlock) string {
	if facts := lookupFacts(question, block); len(facts) > 0 {
		parts := make([]string, len(facts))
		for i, f := range facts {
			parts[i] = f.Label + ": " + f.Value + "."
		}
		return strings.Join(parts, " ")
	}

	if len(block.Facts) == 0 {
		return "I can't reason further about this question right now, and no aggregate figures are available."
	}
	parts := make([]string, len(block.Facts))
	for i, f := range block.Facts {
		parts[i] = f.Label + ": " + f.Value
	}
	return "I can't reason further about this question right now. " +
		"The available aggregate figures are: " + strings.Join(parts, "; ") + "."
}

// IsLookup reports whether the question maps onto at least one fact in block.
func IsLookup(question string, block types.ContextBlock) bool {
	return len(lookupFacts(question, block)) > 0
}

func lookupFacts(question string, block types.ContextBlock) []types.ContextFact {
	text := " " + strings.Join(words(question), " ") + " "
	want := make(map[string]bool)
	for _, l := range lookups {
		for _, p := range l.phrases {
			if strings.Contains(text, " "+p+" ") {
				for _, k := range l.keys {
					want[k] = true
				}
				break
			}
		}
	}
	var facts []types.ContextFact
	for _, f := range block.Facts {
		if want[f.Key] {
			facts = append(facts, f)
		}
	}
	return facts
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
