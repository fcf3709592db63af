// Package contextblock renders the aggregate-only grounding text handed to
// the reasoning step.
package contextblock

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/crypto"
	"github.com/davidahmann/tally/pkg/types"
)

const ContextSchema = "tally.context.v0.1"

// Fact keys. These are the only aggregates that ever reach the reasoning step.
const (
	KeyTotalActiveMRR         = "total_active_mrr"
	KeyActiveCount            = "active_subscriptions"
	KeyInactiveCount          = "inactive_subscriptions"
	KeySubscriptions          = "total_subscriptions"
	KeyEnterpriseCount        = "enterprise_count"
	KeyProfessionalCount      = "professional_count"
	KeyTotalActiveARR         = "total_active_annual_revenue"
	KeyNonRenewingActiveCount = "non_renewing_active_count"
	KeyNonRenewingActiveMRR   = "non_renewing_active_mrr"
	KeyOutstandingBalance     = "total_outstanding_balance"
	KeySeatsPurchased         = "seats_purchased_total"
	KeySeatsUsed              = "seats_used_total"
)

type entry struct {
	key   string
	label string
	count func(aggregate.Snapshot) (int64, bool)
	money func(aggregate.Snapshot) (aggregate.Cents, bool)
}

// allowlist is the complete, ordered set of rendered aggregates. A snapshot
// field that is not listed here is never rendered.
var allowlist = []entry{
	{key: KeyTotalActiveMRR, label: "Total MRR from active subscriptions", money: aggregate.Snapshot.TotalActiveMRR},
	{key: KeyActiveCount, label: "Active subscriptions", count: aggregate.Snapshot.ActiveCount},
	{key: KeyInactiveCount, label: "Inactive subscriptions", count: aggregate.Snapshot.InactiveCount},
	{key: KeySubscriptions, label: "Total subscriptions (any status)", count: aggregate.Snapshot.Subscriptions},
	{key: KeyEnterpriseCount, label: "Enterprise plan subscriptions (any status)", count: aggregate.Snapshot.EnterpriseCount},
	{key: KeyProfessionalCount, label: "Professional plan subscriptions (any status)", count: aggregate.Snapshot.ProfessionalCount},
	{key: KeyTotalActiveARR, label: "Total annual revenue from active subscriptions", money: aggregate.Snapshot.TotalActiveAnnualRevenue},
	{key: KeyNonRenewingActiveCount, label: "Active subscriptions with auto-renew off", count: aggregate.Snapshot.NonRenewingActiveCount},
	{key: KeyNonRenewingActiveMRR, label: "MRR from active subscriptions with auto-renew off", money: aggregate.Snapshot.NonRenewingActiveMRR},
	{key: KeyOutstandingBalance, label: "Total outstanding balance", money: aggregate.Snapshot.TotalOutstandingBalance},
	{key: KeySeatsPurchased, label: "Seats purchased (all subscriptions)", count: aggregate.Snapshot.SeatsPurchased},
	{key: KeySeatsUsed, label: "Seats in use (all subscriptions)", count: aggregate.Snapshot.SeatsUsed},
}

// Keys returns the allow-listed fact keys in rendering order.
func Keys() []string {
	keys := make([]string, len(allowlist))
	for i, e := range allowlist {
		keys[i] = e.key
	}
	return keys
}

const header = "Aggregate statistics over the subscription dataset. " +
	"\"Active\" means status is Active. Amounts are in USD.\n"

// Build renders the allow-listed aggregates of a snapshot. Suppressed
// aggregates are omitted. Build never fails; if the content ID cannot be
// computed the block is returned without one.
func Build(snapshot aggregate.Snapshot) types.ContextBlock {
	p := message.NewPrinter(language.English)

	block := types.ContextBlock{Schema: ContextSchema}
	var text strings.Builder
	text.WriteString(header)

	for _, e := range allowlist {
		var value string
		switch {
		case e.money != nil:
			v, ok := e.money(snapshot)
			if !ok {
				continue
			}
			value = formatMoney(p, v)
		case e.count != nil:
			v, ok := e.count(snapshot)
			if !ok {
				continue
			}
			value = p.Sprintf("%d", v)
		}
		block.Facts = append(block.Facts, types.ContextFact{Key: e.key, Label: e.label, Value: value})
		text.WriteString("- ")
		text.WriteString(e.label)
		text.WriteString(": ")
		text.WriteString(value)
		text.WriteString("\n")
	}
	block.Text = text.String()

	facts := make([]any, 0, len(block.Facts))
	for _, f := range block.Facts {
		facts = append(facts, map[string]any{"key": f.Key, "value": f.Value})
	}
	if id, err := crypto.ID(map[string]any{"schema": block.Schema, "facts": facts}); err == nil {
		block.ContextID = id
	}
	return block
}

// formatMoney renders cents as "$127,100" or "$127,100.50".
func formatMoney(p *message.Printer, c aggregate.Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	if whole, ok := c.Whole(); ok {
		return sign + "$" + p.Sprintf("%d", whole)
	}
	v := int64(c)
	return sign + "$" + p.Sprintf("%d", v/100) + p.Sprintf(".%02d", v%100)
}
