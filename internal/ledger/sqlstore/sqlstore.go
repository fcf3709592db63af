// Package sqlstore is the SQLite-backed ledger.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/davidahmann/tally/internal/ledger"
)

const decisionColumns = `decision_id, request_id, created_at, question_digest, decision, reason_code, path, cause, context_id, policy_hash, body_json`

type Store struct {
	db *sql.DB
}

func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) WithTx(fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = tx.Rollback()
		return err
	}
	wrapped := &Tx{tx: tx}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutPolicyVersion(policy) })
}

func (s *Store) GetPolicyVersion(policyHash string) (ledger.PolicyVersionRecord, bool) {
	return scanPolicy(s.db.QueryRow(`SELECT policy_hash, policy_id, policy_version, policy_yaml, created_at FROM policy_versions WHERE policy_hash = ?`, policyHash))
}

func (s *Store) PutContext(ctx ledger.ContextRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutContext(ctx) })
}

func (s *Store) GetContext(contextID string) (ledger.ContextRecord, bool) {
	return scanContext(s.db.QueryRow(`SELECT context_id, created_at, body_json FROM contexts WHERE context_id = ?`, contextID))
}

func (s *Store) PutDecision(decision ledger.DecisionRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutDecision(decision) })
}

func (s *Store) GetDecision(decisionID string) (ledger.DecisionRecord, bool) {
	rec, err := scanDecision(s.db.QueryRow(`SELECT `+decisionColumns+` FROM decisions WHERE decision_id = ?`, decisionID))
	if err != nil {
		return ledger.DecisionRecord{}, false
	}
	return rec, true
}

func (s *Store) ListDecisions(limit int) ([]ledger.DecisionRecord, error) {
	if limit <= 0 {
		limit = ledger.DefaultListLimit
	}
	rows, err := s.db.Query(`SELECT `+decisionColumns+`
FROM decisions
ORDER BY created_at DESC, decision_id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.DecisionRecord{}
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) PutPolicyVersion(policy ledger.PolicyVersionRecord) error {
	if policy.PolicyHash == "" {
		return ledger.ErrMissingID
	}
	_, err := t.tx.Exec(
		`INSERT INTO policy_versions(policy_hash, policy_id, policy_version, policy_yaml, created_at)
VALUES(?,?,?,?,?)
ON CONFLICT(policy_hash) DO NOTHING`,
		policy.PolicyHash,
		policy.PolicyID,
		policy.PolicyVersion,
		policy.PolicyYAML,
		policy.CreatedAt,
	)
	return err
}

func (t *Tx) GetPolicyVersion(policyHash string) (ledger.PolicyVersionRecord, bool) {
	return scanPolicy(t.tx.QueryRow(`SELECT policy_hash, policy_id, policy_version, policy_yaml, created_at FROM policy_versions WHERE policy_hash = ?`, policyHash))
}

func (t *Tx) PutContext(ctx ledger.ContextRecord) error {
	if ctx.ContextID == "" {
		return ledger.ErrMissingID
	}
	_, err := t.tx.Exec(
		`INSERT INTO contexts(context_id, created_at, body_json)
VALUES(?,?,?)
ON CONFLICT(context_id) DO NOTHING`,
		ctx.ContextID,
		ctx.CreatedAt,
		string(ctx.BodyJSON),
	)
	return err
}

func (t *Tx) GetContext(contextID string) (ledger.ContextRecord, bool) {
	return scanContext(t.tx.QueryRow(`SELECT context_id, created_at, body_json FROM contexts WHERE context_id = ?`, contextID))
}

func (t *Tx) PutDecision(decision ledger.DecisionRecord) error {
	if decision.DecisionID == "" {
		return ledger.ErrMissingID
	}
	_, err := t.tx.Exec(
		`INSERT INTO decisions(`+decisionColumns+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(decision_id) DO NOTHING`,
		decision.DecisionID,
		decision.RequestID,
		decision.CreatedAt,
		decision.QuestionDigest,
		decision.Decision,
		decision.ReasonCode,
		decision.Path,
		decision.Cause,
		decision.ContextID,
		decision.PolicyHash,
		string(decision.BodyJSON),
	)
	return err
}

func (t *Tx) GetDecision(decisionID string) (ledger.DecisionRecord, bool) {
	rec, err := scanDecision(t.tx.QueryRow(`SELECT `+decisionColumns+` FROM decisions WHERE decision_id = ?`, decisionID))
	if err != nil {
		return ledger.DecisionRecord{}, false
	}
	return rec, true
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (ledger.PolicyVersionRecord, bool) {
	var rec ledger.PolicyVersionRecord
	if err := row.Scan(&rec.PolicyHash, &rec.PolicyID, &rec.PolicyVersion, &rec.PolicyYAML, &rec.CreatedAt); err != nil {
		return ledger.PolicyVersionRecord{}, false
	}
	return rec, true
}

func scanContext(row scanner) (ledger.ContextRecord, bool) {
	var rec ledger.ContextRecord
	var body string
	if err := row.Scan(&rec.ContextID, &rec.CreatedAt, &body); err != nil {
		return ledger.ContextRecord{}, false
	}
	rec.BodyJSON = []byte(body)
	return rec, true
}

func scanDecision(row scanner) (ledger.DecisionRecord, error) {
	var rec ledger.DecisionRecord
	var contextID sql.NullString
	var body string
	if err := row.Scan(&rec.DecisionID, &rec.RequestID, &rec.CreatedAt, &rec.QuestionDigest, &rec.Decision, &rec.ReasonCode, &rec.Path, &rec.Cause, &contextID, &rec.PolicyHash, &body); err != nil {
		return ledger.DecisionRecord{}, err
	}
	if contextID.Valid {
		id := contextID.String
		rec.ContextID = &id
	}
	rec.BodyJSON = []byte(body)
	return rec, nil
}
