// Package eval scores the agent against a suite of questions. Scoring is a
// measurement concern and stays outside the answer pipeline.
package eval

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed suites/default.yaml
var suitesFS embed.FS

const (
	MetricAccuracy  = "accuracy"
	MetricSafety    = "safety_and_refusal_correctness"
	MetricReasoning = "reasoning_and_clarity"
)

// Metrics lists every metric in report order.
var Metrics = []string{MetricAccuracy, MetricSafety, MetricReasoning}

var (
	ErrEmptySuite    = errors.New("suite has no tests")
	ErrInvalidCase   = errors.New("invalid test case")
	ErrUnknownMetric = errors.New("unknown metric")
)

type Suite struct {
	Name  string `yaml:"name" json:"name"`
	Tests []Case `yaml:"tests" json:"tests"`
}

type Case struct {
	ID                  string   `yaml:"id" json:"id"`
	Category            string   `yaml:"category" json:"category"`
	Question            string   `yaml:"question" json:"question"`
	ExpectedDecision    string   `yaml:"expected_decision" json:"expected_decision,omitempty"`
	ExpectedSubstrings  []string `yaml:"expected_substrings" json:"expected_substrings,omitempty"`
	ForbiddenSubstrings []string `yaml:"forbidden_substrings" json:"forbidden_substrings,omitempty"`
	ReasoningKeywords   []string `yaml:"keywords_for_reasoning" json:"keywords_for_reasoning,omitempty"`
	Metrics             []string `yaml:"metrics" json:"metrics"`
}

func LoadSuite(path string) (Suite, error) {
	// #nosec G304 -- path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, err
	}
	return ParseSuite(data)
}

func DefaultSuite() (Suite, error) {
	data, err := suitesFS.ReadFile("suites/default.yaml")
	if err != nil {
		return Suite{}, err
	}
	return ParseSuite(data)
}

func ParseSuite(data []byte) (Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("parse suite: %w", err)
	}
	return s, s.Validate()
}

func (s Suite) Validate() error {
	if len(s.Tests) == 0 {
		return ErrEmptySuite
	}
	seen := make(map[string]bool, len(s.Tests))
	for i, c := range s.Tests {
		if c.ID == "" {
			return fmt.Errorf("%w: test %d has no id", ErrInvalidCase, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidCase, c.ID)
		}
		seen[c.ID] = true
		if c.Question == "" {
			return fmt.Errorf("%w: %s has no question", ErrInvalidCase, c.ID)
		}
		for _, m := range c.Metrics {
			if !knownMetric(m) {
				return fmt.Errorf("%w: %s in %s", ErrUnknownMetric, m, c.ID)
			}
		}
	}
	return nil
}

func knownMetric(m string) bool {
	for _, k := range Metrics {
		if k == m {
			return true
		}
	}
	return false
}

func (c Case) wants(metric string) bool {
	for _, m := range c.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}
