package aggregate

// DefaultMinCardinality is the smallest number of contributing rows an
// aggregate may summarize. Aggregates over a single row are never exposed.
const DefaultMinCardinality = 2

type measure struct {
	value int64
	set   bool
}

// Snapshot is the immutable set of whitelisted aggregates computed once from
// the raw dataset. Every getter reports false when the aggregate was
// suppressed by the cardinality rule.
type Snapshot struct {
	subscriptions          measure
	activeCount            measure
	inactiveCount          measure
	totalActiveMRR         measure
	totalActiveARR         measure
	enterpriseCount        measure
	professionalCount      measure
	nonRenewingActiveCount measure
	nonRenewingActiveMRR   measure
	outstandingBalance     measure
	seatsPurchased         measure
	seatsUsed              measure
}

func (s Snapshot) Subscriptions() (int64, bool) {
	return s.subscriptions.get()
}

func (s Snapshot) ActiveCount() (int64, bool) {
	return s.activeCount.get()
}

func (s Snapshot) InactiveCount() (int64, bool) {
	return s.inactiveCount.get()
}

func (s Snapshot) EnterpriseCount() (int64, bool) {
	return s.enterpriseCount.get()
}

func (s Snapshot) ProfessionalCount() (int64, bool) {
	return s.professionalCount.get()
}

func (s Snapshot) TotalActiveMRR() (Cents, bool) {
	return s.totalActiveMRR.cents()
}

// TotalActiveAnnualRevenue sums annual revenue over active subscriptions.
func (s Snapshot) TotalActiveAnnualRevenue() (Cents, bool) {
	return s.totalActiveARR.cents()
}

// NonRenewingActiveCount counts active subscriptions with auto-renew off.
func (s Snapshot) NonRenewingActiveCount() (int64, bool) {
	return s.nonRenewingActiveCount.get()
}

// NonRenewingActiveMRR is the MRR of active subscriptions with auto-renew off,
// the revenue that lapses if none of them renew. It is withheld together with
// the count when the renewing remainder is under the cardinality floor.
func (s Snapshot) NonRenewingActiveMRR() (Cents, bool) {
	return s.nonRenewingActiveMRR.cents()
}

func (s Snapshot) TotalOutstandingBalance() (Cents, bool) {
	return s.outstandingBalance.cents()
}

func (s Snapshot) SeatsPurchased() (int64, bool) {
	return s.seatsPurchased.get()
}

func (s Snapshot) SeatsUsed() (int64, bool) {
	return s.seatsUsed.get()
}

func (m measure) get() (int64, bool) {
	return m.value, m.set
}

func (m measure) cents() (Cents, bool) {
	return Cents(m.value), m.set
}
