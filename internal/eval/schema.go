package eval

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/davidahmann/tally/pkg/types"
)

// EnvelopeSchema is the wire contract for one answer.
const EnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["answer", "decision", "reasoning_note"],
  "properties": {
    "answer": {"type": "string", "minLength": 1},
    "decision": {"type": "string", "enum": ["answer", "refuse"]},
    "reasoning_note": {"type": "string", "minLength": 1}
  }
}`

var envelopeSchema = gojsonschema.NewStringLoader(EnvelopeSchema)

// ValidateEnvelope checks env against EnvelopeSchema.
func ValidateEnvelope(env types.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return ValidateEnvelopeJSON(raw)
}

func ValidateEnvelopeJSON(raw []byte) error {
	result, err := gojsonschema.Validate(envelopeSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return fmt.Errorf("envelope schema errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
