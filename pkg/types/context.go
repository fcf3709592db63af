package types

// ContextFact is one allow-listed aggregate rendered for the reasoning step.
type ContextFact struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ContextBlock is the bounded, aggregate-only grounding text for one request.
type ContextBlock struct {
	Schema    string        `json:"schema"`
	ContextID string        `json:"context_id"`
	Facts     []ContextFact `json:"facts"`
	Text      string        `json:"text"`
}

// Fact returns the fact with the given key.
func (b ContextBlock) Fact(key string) (ContextFact, bool) {
	for _, f := range b.Facts {
		if f.Key == key {
			return f, true
		}
	}
	return ContextFact{}, false
}
