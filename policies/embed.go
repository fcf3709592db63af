// Package policies embeds the default classification policy.
package policies

import _ "embed"

//go:embed default.yaml
var defaultYAML []byte

// DefaultYAML returns the embedded default policy document.
func DefaultYAML() []byte { return defaultYAML }
