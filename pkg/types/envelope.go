package types

// Decision tags carried on the wire.
const (
	DecisionAnswer = "answer"
	DecisionRefuse = "refuse"
)

// Envelope is the externally visible result of a question. Consumers depend
// on exactly these three keys and the two decision values.
type Envelope struct {
	Answer        string `json:"answer"`
	Decision      string `json:"decision"`
	ReasoningNote string `json:"reasoning_note"`
}

// Refused reports whether the envelope carries a refusal.
func (e Envelope) Refused() bool {
	return e.Decision == DecisionRefuse
}
