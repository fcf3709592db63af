package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/davidahmann/tally/pkg/types"
)

// emailPattern matches any token that carries an @. Anything shaped like
// an address, however malformed, is treated as one.
const emailPattern = `[^\s@]*@[^\s@]*`

type compiledRule struct {
	rule    Rule
	phrases []string
	cooccur [][]string
	re      *regexp.Regexp
}

// match returns the pattern text that matched, never the matched value.
func (c compiledRule) match(normalized string) (string, bool) {
	switch c.rule.Kind {
	case KindPhrases:
		for _, phrase := range c.phrases {
			if containsWord(normalized, phrase) {
				return phrase, true
			}
		}
		return c.matchCooccur(normalized)
	default:
		if !c.rule.Luhn {
			if c.re.MatchString(normalized) {
				return c.re.String(), true
			}
			return "", false
		}
		for _, candidate := range c.re.FindAllString(normalized, -1) {
			if luhnValid(digitsOnly(candidate)) {
				return c.re.String(), true
			}
		}
		return "", false
	}
}

// matchCooccur reports the first word of each group found in normalized,
// joined with "+", when every group has one.
func (c compiledRule) matchCooccur(normalized string) (string, bool) {
	if len(c.cooccur) == 0 {
		return "", false
	}
	hits := make([]string, 0, len(c.cooccur))
	for _, group := range c.cooccur {
		hit := ""
		for _, word := range group {
			if containsWord(normalized, word) {
				hit = word
				break
			}
		}
		if hit == "" {
			return "", false
		}
		hits = append(hits, hit)
	}
	return strings.Join(hits, "+"), true
}

// Engine classifies text against a compiled policy. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	loaded LoadedPolicy
	rules  []compiledRule
}

// NewEngine compiles every rule of a loaded policy.
func NewEngine(loaded LoadedPolicy) (*Engine, error) {
	if err := Validate(loaded.Policy); err != nil {
		return nil, err
	}
	e := &Engine{loaded: loaded}
	for _, r := range loaded.Policy.Rules {
		c := compiledRule{rule: r}
		switch r.Kind {
		case KindPhrases:
			for _, p := range r.Phrases {
				if n := Normalize(p); n != "" {
					c.phrases = append(c.phrases, n)
				}
			}
			for _, group := range r.Cooccur {
				var words []string
				for _, w := range group {
					if n := Normalize(w); n != "" {
						words = append(words, n)
					}
				}
				if len(words) == 0 {
					return nil, fmt.Errorf("%w: rule %s has an empty cooccur group", ErrInvalidRule, r.ID)
				}
				c.cooccur = append(c.cooccur, words)
			}
		case KindEmail, KindPattern:
			src := r.Pattern
			if src == "" {
				src = emailPattern
			}
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRule, r.ID, err)
			}
			c.re = re
		}
		e.rules = append(e.rules, c)
	}
	return e, nil
}

// NewDefaultEngine compiles the embedded default policy.
func NewDefaultEngine() (*Engine, error) {
	loaded, err := LoadDefault()
	if err != nil {
		return nil, err
	}
	return NewEngine(loaded)
}

// Policy identifies the policy this engine enforces.
func (e *Engine) Policy() types.Policy {
	return types.Policy{
		PolicyID:      e.loaded.Policy.PolicyID,
		PolicyVersion: e.loaded.Policy.PolicyVersion,
		PolicyHash:    e.loaded.Hash,
	}
}

// Classify runs every rule against the question. The first matching rule
// in policy order names the reason code; any match refuses.
func (e *Engine) Classify(question string) Result {
	normalized := Normalize(question)
	res := Result{Verdict: VerdictAllow, ReasonCode: ReasonNone}
	for _, c := range e.rules {
		pattern, ok := c.match(normalized)
		if !ok {
			continue
		}
		res.ReasonCodes = append(res.ReasonCodes, "POLICY_MATCH:"+c.rule.ID)
		if res.Verdict == VerdictRefuse {
			continue
		}
		res.Verdict = VerdictRefuse
		res.ReasonCode = c.rule.ReasonCode
		res.MatchedPattern = pattern
		res.RuleID = c.rule.ID
	}
	return res
}

// ScanOutput checks generated text against the rules flagged post_hoc.
// A match is reported as post_hoc_leak.
func (e *Engine) ScanOutput(text string) Result {
	normalized := Normalize(text)
	for _, c := range e.rules {
		if !c.rule.PostHoc {
			continue
		}
		if pattern, ok := c.match(normalized); ok {
			return Result{
				Verdict:        VerdictRefuse,
				ReasonCode:     ReasonPostHocLeak,
				MatchedPattern: pattern,
				RuleID:         c.rule.ID,
				ReasonCodes:    []string{"POST_HOC_MATCH:" + c.rule.ID},
			}
		}
	}
	return Result{Verdict: VerdictAllow, ReasonCode: ReasonNone}
}
