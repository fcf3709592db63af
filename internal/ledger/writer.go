package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/davidahmann/tally/pkg/types"
)

// RecordDecision writes the context block (when present) and the decision
// in one transaction.
func RecordDecision(s Store, rec types.DecisionRecord, block *types.ContextBlock) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	dec := DecisionRecord{
		DecisionID:     rec.DecisionID,
		RequestID:      rec.RequestID,
		CreatedAt:      rec.CreatedAt,
		QuestionDigest: rec.QuestionDigest,
		Decision:       rec.Decision,
		ReasonCode:     rec.ReasonCode,
		Path:           rec.Path,
		Cause:          rec.Cause,
		PolicyHash:     rec.Policy.PolicyHash,
		BodyJSON:       body,
	}

	var ctxRec *ContextRecord
	if block != nil && block.ContextID != "" {
		blockJSON, err := json.Marshal(block)
		if err != nil {
			return fmt.Errorf("encode context: %w", err)
		}
		id := block.ContextID
		dec.ContextID = &id
		ctxRec = &ContextRecord{ContextID: id, BodyJSON: blockJSON, CreatedAt: rec.CreatedAt}
	}

	return s.WithTx(func(tx Tx) error {
		if ctxRec != nil {
			if err := tx.PutContext(*ctxRec); err != nil {
				return fmt.Errorf("put context: %w", err)
			}
		}
		if err := tx.PutDecision(dec); err != nil {
			return fmt.Errorf("put decision: %w", err)
		}
		return nil
	})
}

// DecodeDecision unmarshals the stored body of a decision.
func DecodeDecision(rec DecisionRecord) (types.DecisionRecord, error) {
	var out types.DecisionRecord
	if err := json.Unmarshal(rec.BodyJSON, &out); err != nil {
		return types.DecisionRecord{}, fmt.Errorf("decode decision %s: %w", rec.DecisionID, err)
	}
	return out, nil
}
