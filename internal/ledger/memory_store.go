package ledger

import (
	"sort"
	"sync"
)

type InMemoryStore struct {
	mu sync.Mutex

	policies  map[string]PolicyVersionRecord
	contexts  map[string]ContextRecord
	decisions map[string]DecisionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies:  make(map[string]PolicyVersionRecord),
		contexts:  make(map[string]ContextRecord),
		decisions: make(map[string]DecisionRecord),
	}
}

// WithTx runs fn under the store lock. Writes made before fn fails are not
// rolled back.
func (s *InMemoryStore) WithTx(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn((*memTx)(s))
}

type memTx InMemoryStore

func (s *InMemoryStore) PutPolicyVersion(policy PolicyVersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutPolicyVersion(policy)
}

func (s *InMemoryStore) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetPolicyVersion(policyHash)
}

func (s *InMemoryStore) PutContext(ctx ContextRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutContext(ctx)
}

func (s *InMemoryStore) GetContext(contextID string) (ContextRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetContext(contextID)
}

func (s *InMemoryStore) PutDecision(decision DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).PutDecision(decision)
}

func (s *InMemoryStore) GetDecision(decisionID string) (DecisionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*memTx)(s).GetDecision(decisionID)
}

// ListDecisions returns the newest decisions first.
func (s *InMemoryStore) ListDecisions(limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DecisionRecord, 0, len(s.decisions))
	for _, d := range s.decisions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].DecisionID < out[j].DecisionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Inserts ignore duplicates, matching ON CONFLICT DO NOTHING in the SQL stores.

func (t *memTx) PutPolicyVersion(policy PolicyVersionRecord) error {
	if policy.PolicyHash == "" {
		return ErrMissingID
	}
	if _, ok := t.policies[policy.PolicyHash]; !ok {
		t.policies[policy.PolicyHash] = policy
	}
	return nil
}

func (t *memTx) GetPolicyVersion(policyHash string) (PolicyVersionRecord, bool) {
	rec, ok := t.policies[policyHash]
	return rec, ok
}

func (t *memTx) PutContext(ctx ContextRecord) error {
	if ctx.ContextID == "" {
		return ErrMissingID
	}
	if _, ok := t.contexts[ctx.ContextID]; !ok {
		t.contexts[ctx.ContextID] = ctx
	}
	return nil
}

func (t *memTx) GetContext(contextID string) (ContextRecord, bool) {
	rec, ok := t.contexts[contextID]
	return rec, ok
}

func (t *memTx) PutDecision(decision DecisionRecord) error {
	if decision.DecisionID == "" {
		return ErrMissingID
	}
	if _, ok := t.decisions[decision.DecisionID]; !ok {
		t.decisions[decision.DecisionID] = decision
	}
	return nil
}

func (t *memTx) GetDecision(decisionID string) (DecisionRecord, bool) {
	rec, ok := t.decisions[decisionID]
	return rec, ok
}
