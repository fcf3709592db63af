package decision

import (
	"github.com/davidahmann/tally/internal/crypto"
	"github.com/davidahmann/tally/pkg/types"
)

const DecisionSchema = "tally.decision.v0.1"

// RecordInput is everything a ledger record is derived from.
type RecordInput struct {
	RequestID      string
	QuestionDigest string
	ContextID      string
	Policy         types.Policy
	ReasonCodes    []string
	Outcome        Outcome
	CreatedAt      string
}

// BuildRecord builds the audit record for one envelope and computes its
// decision_id over the canonical form of the record.
func BuildRecord(in RecordInput) (types.DecisionRecord, error) {
	record := types.DecisionRecord{
		Schema:         DecisionSchema,
		RequestID:      in.RequestID,
		CreatedAt:      in.CreatedAt,
		QuestionDigest: in.QuestionDigest,
		ContextID:      in.ContextID,
		Policy:         in.Policy,
		Decision:       in.Outcome.Envelope.Decision,
		ReasonCode:     string(in.Outcome.ReasonCode),
		ReasonCodes:    in.ReasonCodes,
		Path:           in.Outcome.Path,
		Cause:          string(in.Outcome.Cause),
		Envelope:       in.Outcome.Envelope,
	}

	reasonCodes := make([]any, len(record.ReasonCodes))
	for i, c := range record.ReasonCodes {
		reasonCodes[i] = c
	}
	signingView := map[string]any{
		"schema":          record.Schema,
		"request_id":      record.RequestID,
		"created_at":      record.CreatedAt,
		"question_digest": record.QuestionDigest,
		"context_id":      record.ContextID,
		"policy": map[string]any{
			"policy_id":      record.Policy.PolicyID,
			"policy_version": record.Policy.PolicyVersion,
			"policy_hash":    record.Policy.PolicyHash,
		},
		"decision":     record.Decision,
		"reason_code":  record.ReasonCode,
		"reason_codes": reasonCodes,
		"path":         record.Path,
		"cause":        record.Cause,
		"envelope": map[string]any{
			"answer":         record.Envelope.Answer,
			"decision":       record.Envelope.Decision,
			"reasoning_note": record.Envelope.ReasoningNote,
		},
	}

	id, err := crypto.ID(signingView)
	if err != nil {
		return types.DecisionRecord{}, err
	}
	record.DecisionID = id
	return record, nil
}
