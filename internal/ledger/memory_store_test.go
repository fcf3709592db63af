package ledger

import (
	"errors"
	"testing"
)

func TestInMemoryStoreCRUD(t *testing.T) {
	s := NewInMemoryStore()

	policy := PolicyVersionRecord{PolicyHash: "sha256:ph", PolicyID: "tally-default", PolicyVersion: "1", CreatedAt: "2026-10-01T00:00:00Z"}
	if err := s.PutPolicyVersion(policy); err != nil {
		t.Fatalf("put policy: %v", err)
	}
	if got, ok := s.GetPolicyVersion("sha256:ph"); !ok || got.PolicyID != "tally-default" {
		t.Fatalf("get policy mismatch: ok=%v got=%+v", ok, got)
	}

	ctx := ContextRecord{ContextID: "sha256:ctx", BodyJSON: []byte(`{}`), CreatedAt: "2026-10-01T00:00:01Z"}
	if err := s.PutContext(ctx); err != nil {
		t.Fatalf("put context: %v", err)
	}
	if _, ok := s.GetContext("sha256:ctx"); !ok {
		t.Fatalf("expected context")
	}

	ctxID := "sha256:ctx"
	first := DecisionRecord{DecisionID: "sha256:d1", ContextID: &ctxID, Decision: "answer", CreatedAt: "2026-10-01T00:00:02Z"}
	if err := s.PutDecision(first); err != nil {
		t.Fatalf("put decision: %v", err)
	}
	dup := first
	dup.Decision = "refuse"
	if err := s.PutDecision(dup); err != nil {
		t.Fatalf("put duplicate: %v", err)
	}
	if got, ok := s.GetDecision("sha256:d1"); !ok || got.Decision != "answer" {
		t.Fatalf("duplicate insert should be ignored: ok=%v got=%+v", ok, got)
	}
	if _, ok := s.GetDecision("missing"); ok {
		t.Fatalf("expected missing decision")
	}
}

func TestInMemoryStoreRejectsMissingIDs(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.PutDecision(DecisionRecord{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := s.PutContext(ContextRecord{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
	if err := s.PutPolicyVersion(PolicyVersionRecord{}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestInMemoryStoreListDecisionsNewestFirst(t *testing.T) {
	s := NewInMemoryStore()
	for _, d := range []DecisionRecord{
		{DecisionID: "a", CreatedAt: "2026-10-01T00:00:01Z"},
		{DecisionID: "b", CreatedAt: "2026-10-01T00:00:03Z"},
		{DecisionID: "c", CreatedAt: "2026-10-01T00:00:02Z"},
	} {
		if err := s.PutDecision(d); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, err := s.ListDecisions(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].DecisionID != "b" || got[1].DecisionID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}

	all, err := s.ListDecisions(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(all))
	}
}

func TestInMemoryWithTxPropagatesError(t *testing.T) {
	s := NewInMemoryStore()
	boom := errors.New("boom")
	err := s.WithTx(func(tx Tx) error {
		if err := tx.PutDecision(DecisionRecord{DecisionID: "x"}); err != nil {
			return err
		}
		if _, ok := tx.GetDecision("x"); !ok {
			t.Fatalf("expected decision visible inside tx")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
