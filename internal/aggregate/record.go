package aggregate

import (
	"strings"
)

// Cents is a currency amount in hundredths of the unit.
type Cents int64

// Whole reports the amount in whole units and whether it has no fractional part.
func (c Cents) Whole() (int64, bool) {
	return int64(c) / 100, int64(c)%100 == 0
}

// RawRecord is one subscription row. Records are consumed by Compute and are
// never handed back out of this package.
type RawRecord struct {
	CustomerID         string
	Company            string
	ContactEmail       string
	ContactPhone       string
	PlanTier           string
	MonthlyRevenue     Cents
	AnnualRevenue      Cents
	SeatsPurchased     int64
	SeatsUsed          int64
	OutstandingBalance Cents
	Status             string
	AutoRenew          bool
	CustomFeatures     []string
}

const (
	TierEnterprise   = "enterprise"
	TierProfessional = "professional"
	StatusActive     = "active"
)

func (r RawRecord) active() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), StatusActive)
}

func (r RawRecord) tier(name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.PlanTier), name)
}
