package aggregate

// Option configures Compute.
type Option func(*computeConfig)

type computeConfig struct {
	minCardinality int
}

// WithMinCardinality overrides DefaultMinCardinality. Values below 2 are
// raised to 2.
func WithMinCardinality(n int) Option {
	return func(c *computeConfig) { c.minCardinality = n }
}

type accumulator struct {
	sum  int64
	rows int
}

func (a *accumulator) add(v int64) {
	a.sum += v
	a.rows++
}

// seal applies the cardinality rule. An empty aggregate identifies nobody and
// is kept; one backed by fewer than min rows is suppressed.
func (a accumulator) seal(floor int) measure {
	if a.thin(floor) {
		return measure{}
	}
	return measure{value: a.sum, set: true}
}

// without is the accumulator for the rows in a that are not in part.
func (a accumulator) without(part accumulator) accumulator {
	return accumulator{sum: a.sum - part.sum, rows: a.rows - part.rows}
}

// thin reports whether a covers some rows but fewer than floor.
func (a accumulator) thin(floor int) bool {
	return a.rows > 0 && a.rows < floor
}

// Compute derives the aggregate snapshot from raw records. It is pure and the
// records are not retained.
func Compute(records []RawRecord, opts ...Option) Snapshot {
	cfg := computeConfig{minCardinality: DefaultMinCardinality}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.minCardinality < DefaultMinCardinality {
		cfg.minCardinality = DefaultMinCardinality
	}

	var (
		all, active, inactive       accumulator
		mrr, arr                    accumulator
		enterprise, professional    accumulator
		nonRenewing, nonRenewingMRR accumulator
		balance, purchased, used    accumulator
	)

	for _, r := range records {
		all.add(1)
		balance.add(int64(r.OutstandingBalance))
		purchased.add(r.SeatsPurchased)
		used.add(r.SeatsUsed)

		switch {
		case r.tier(TierEnterprise):
			enterprise.add(1)
		case r.tier(TierProfessional):
			professional.add(1)
		}

		if !r.active() {
			inactive.add(1)
			continue
		}
		active.add(1)
		mrr.add(int64(r.MonthlyRevenue))
		arr.add(int64(r.AnnualRevenue))
		if !r.AutoRenew {
			nonRenewing.add(1)
			nonRenewingMRR.add(int64(r.MonthlyRevenue))
		}
	}

	floor := cfg.minCardinality
	snap := Snapshot{
		subscriptions:          all.seal(floor),
		activeCount:            active.seal(floor),
		inactiveCount:          inactive.seal(floor),
		totalActiveMRR:         mrr.seal(floor),
		totalActiveARR:         arr.seal(floor),
		enterpriseCount:        enterprise.seal(floor),
		professionalCount:      professional.seal(floor),
		nonRenewingActiveCount: nonRenewing.seal(floor),
		nonRenewingActiveMRR:   nonRenewingMRR.seal(floor),
		outstandingBalance:     balance.seal(floor),
		seatsPurchased:         purchased.seal(floor),
		seatsUsed:              used.seal(floor),
	}

	// The non-renewing pair is a subset of the active totals. If the
	// renewing remainder is thin, subtracting one from the other yields
	// those rows, so the subset is withheld.
	if active.without(nonRenewing).thin(floor) || mrr.without(nonRenewingMRR).thin(floor) {
		snap.nonRenewingActiveCount = measure{}
		snap.nonRenewingActiveMRR = measure{}
	}
	return snap
}

// Store holds the snapshot computed at startup. It is safe for concurrent
// readers without locking because the snapshot never changes.
type Store struct {
	snapshot Snapshot
}

// NewStore computes the snapshot once and discards the records.
func NewStore(records []RawRecord, opts ...Option) *Store {
	return &Store{snapshot: Compute(records, opts...)}
}

// Snapshot returns the immutable aggregate snapshot.
func (s *Store) Snapshot() Snapshot {
	return s.snapshot
}
