package sqlstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/davidahmann/tally/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := ledger.Migrate(s.DB(), ledger.DBSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := openTestStore(t)

	policy := ledger.PolicyVersionRecord{
		PolicyHash:    "sha256:ph",
		PolicyID:      "tally-default",
		PolicyVersion: "1",
		PolicyYAML:    "policy_id: tally-default\npolicy_version: \"1\"\n",
		CreatedAt:     "2026-10-01T00:00:00Z",
	}
	if err := s.PutPolicyVersion(policy); err != nil {
		t.Fatalf("put policy: %v", err)
	}
	if got, ok := s.GetPolicyVersion("sha256:ph"); !ok || got.PolicyID != "tally-default" {
		t.Fatalf("get policy mismatch: ok=%v got=%+v", ok, got)
	}

	ctx := ledger.ContextRecord{ContextID: "sha256:ctx", BodyJSON: []byte(`{"context_id":"sha256:ctx"}`), CreatedAt: "2026-10-01T00:00:01Z"}
	if err := s.PutContext(ctx); err != nil {
		t.Fatalf("put context: %v", err)
	}
	if got, ok := s.GetContext("sha256:ctx"); !ok || string(got.BodyJSON) != string(ctx.BodyJSON) {
		t.Fatalf("get context mismatch: ok=%v got=%+v", ok, got)
	}

	ctxID := "sha256:ctx"
	dec := ledger.DecisionRecord{
		DecisionID:     "sha256:d1",
		RequestID:      "req-1",
		CreatedAt:      "2026-10-01T00:00:02Z",
		QuestionDigest: "sha256:q",
		Decision:       "answer",
		ReasonCode:     "none",
		Path:           "fallback",
		Cause:          "timeout",
		ContextID:      &ctxID,
		PolicyHash:     "sha256:ph",
		BodyJSON:       []byte(`{"decision_id":"sha256:d1"}`),
	}
	if err := s.PutDecision(dec); err != nil {
		t.Fatalf("put decision: %v", err)
	}
	got, ok := s.GetDecision("sha256:d1")
	if !ok || got.ContextID == nil || *got.ContextID != "sha256:ctx" || got.Cause != "timeout" {
		t.Fatalf("get decision mismatch: ok=%v got=%+v", ok, got)
	}

	// Duplicate ids are ignored.
	dup := dec
	dup.Decision = "refuse"
	if err := s.PutDecision(dup); err != nil {
		t.Fatalf("put duplicate: %v", err)
	}
	if got, _ := s.GetDecision("sha256:d1"); got.Decision != "answer" {
		t.Fatalf("duplicate overwrote decision: %+v", got)
	}

	refusal := ledger.DecisionRecord{
		DecisionID:     "sha256:d2",
		RequestID:      "req-2",
		CreatedAt:      "2026-10-01T00:00:03Z",
		QuestionDigest: "sha256:q2",
		Decision:       "refuse",
		ReasonCode:     "bulk_export",
		Path:           "none",
		PolicyHash:     "sha256:ph",
		BodyJSON:       []byte(`{}`),
	}
	if err := s.PutDecision(refusal); err != nil {
		t.Fatalf("put refusal: %v", err)
	}
	if got, ok := s.GetDecision("sha256:d2"); !ok || got.ContextID != nil {
		t.Fatalf("refusal should have no context: ok=%v got=%+v", ok, got)
	}

	list, err := s.ListDecisions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].DecisionID != "sha256:d2" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutContext(ledger.ContextRecord{ContextID: "sha256:ctx", BodyJSON: []byte(`{}`), CreatedAt: "t"}); err != nil {
			return err
		}
		if _, ok := tx.GetContext("sha256:ctx"); !ok {
			t.Fatalf("expected context inside tx")
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.GetContext("sha256:ctx"); ok {
		t.Fatalf("expected rollback to discard context")
	}
}

func TestTxReadsOwnWrites(t *testing.T) {
	s := openTestStore(t)

	if err := s.WithTx(func(tx ledger.Tx) error {
		if err := tx.PutPolicyVersion(ledger.PolicyVersionRecord{PolicyHash: "sha256:ph", PolicyID: "p", PolicyVersion: "1", CreatedAt: "t"}); err != nil {
			return err
		}
		if _, ok := tx.GetPolicyVersion("sha256:ph"); !ok {
			return errors.New("policy not visible")
		}
		if err := tx.PutDecision(ledger.DecisionRecord{DecisionID: "sha256:d", BodyJSON: []byte(`{}`)}); err != nil {
			return err
		}
		if _, ok := tx.GetDecision("sha256:d"); !ok {
			return errors.New("decision not visible")
		}
		return nil
	}); err != nil {
		t.Fatalf("withtx: %v", err)
	}
	if err := s.PutDecision(ledger.DecisionRecord{}); !errors.Is(err, ledger.ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}
