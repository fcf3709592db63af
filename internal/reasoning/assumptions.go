package reasoning

import "strings"

// BaseAssumption is stated on every answered request.
const BaseAssumption = `Assumption: figures are aggregates over the current subscription dataset, and "active" means status Active.`

const (
	renewalAssumption = `Assumption: "might not renew" or "at risk" is interpreted as active subscriptions with auto-renew turned off.`
	hedgeAssumption   = `Assumption: the question is interpreted as asking for the closest matching aggregate figures, not a forecast.`
)

var renewalPhrases = []string{"renew", "renewal", "renewing", "at risk", "churn", "lapse"}

var hedgeWords = []string{"might", "may", "could", "likely", "possibly", "probably", "expected", "expect", "forecast", "predict"}

// Assumptions lists the interpretations applied to question, base first.
func Assumptions(question string) []string {
	text := " " + strings.Join(words(question), " ") + " "
	out := []string{BaseAssumption}
	if containsAny(text, renewalPhrases) {
		return append(out, renewalAssumption)
	}
	if containsAny(text, hedgeWords) {
		out = append(out, hedgeAssumption)
	}
	return out
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
