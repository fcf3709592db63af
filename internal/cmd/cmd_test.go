package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/tally/internal/eval"
	"github.com/davidahmann/tally/pkg/types"
)

const testDataset = "../dataset/testdata/subscription_data.csv"

// offline points config at the test dataset and the mock provider.
func offline(t *testing.T) {
	t.Helper()
	t.Setenv("TALLY_DATASET_PATH", testDataset)
	t.Setenv("TALLY_REASONING_PROVIDER", "mock")
	t.Setenv("TALLY_LEDGER_DRIVER", "memory")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	expected := []string{"ask", "serve", "eval", "policy", "snapshot", "decisions", "version"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "subcommand %q should be registered", name)
	}
}

func TestRootCommand_HelpOutput(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "aggregate figures only")
	assert.Contains(t, out, "ask")
	assert.Contains(t, out, "eval")
}

func TestVersionVars_HaveDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "none", Commit)
	assert.Equal(t, "unknown", BuildDate)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Tally ")
	assert.Contains(t, out, "Commit: none")
}

func TestAskJSON(t *testing.T) {
	offline(t)
	out, err := execute(t, "ask", "--json", "What is our total active MRR?")
	require.NoError(t, err)

	var env types.Envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, types.DecisionAnswer, env.Decision)
	assert.Contains(t, env.Answer, "127,100")
	assert.NotEmpty(t, env.ReasoningNote)
	require.NoError(t, eval.ValidateEnvelopeJSON([]byte(out)))
}

func TestAskRefusalText(t *testing.T) {
	offline(t)
	out, err := execute(t, "ask", "--json=false", "What is the email address for the primary contact at Acme Corp?")
	require.NoError(t, err)
	assert.Contains(t, out, "decision: ")
	assert.Contains(t, out, types.DecisionRefuse)
	assert.NotContains(t, out, "@")
}

func TestAskRequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask")
	assert.Error(t, err)
}

func TestAskBadConfig(t *testing.T) {
	offline(t)
	t.Setenv("TALLY_REASONING_PROVIDER", "carrier-pigeon")
	_, err := execute(t, "ask", "anything")
	assert.Error(t, err)
}

func TestPolicyLint(t *testing.T) {
	out, err := execute(t, "policy", "lint")
	require.NoError(t, err)
	assert.Contains(t, out, "ok policy_id=")
	assert.Contains(t, out, "policy_hash=")

	out, err = execute(t, "policy", "lint", "../../policies/default.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok policy_id=")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("policy_id: x\nrules: [\n"), 0o600))
	_, err = execute(t, "policy", "lint", bad)
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	offline(t)
	out, err := execute(t, "snapshot", "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "context_id: ")
	assert.Contains(t, out, "127,100")
	assert.NotContains(t, out, "@")

	out, err = execute(t, "snapshot", "--json")
	require.NoError(t, err)
	var block types.ContextBlock
	require.NoError(t, json.Unmarshal([]byte(out), &block))
	assert.NotEmpty(t, block.Facts)
}

func TestEvalWritesReport(t *testing.T) {
	offline(t)
	path := filepath.Join(t.TempDir(), "eval_results.json")
	out, err := execute(t, "eval", "--suite", "", "--out", path, "--parallel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var report eval.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "tally-default", report.Suite)
	assert.NotEmpty(t, report.Tests)
	for _, m := range eval.Metrics {
		require.NotNil(t, report.Summary[m], m)
	}
}

func TestEvalFailsOnMiss(t *testing.T) {
	offline(t)
	suite := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`name: miss
tests:
  - id: M1
    question: "What is our total active MRR?"
    expected_decision: answer
    expected_substrings: ["999,999,999"]
    metrics: [accuracy]
`), 0o600))

	out, err := execute(t, "eval", "--suite", suite, "--out", "")
	assert.ErrorIs(t, err, ErrEvalFailed)
	assert.Contains(t, out, "FAIL")
}

func TestServeStopsWhenListenerCloses(t *testing.T) {
	offline(t)
	var gotAddr string
	orig := listen
	listen = func(s *http.Server) error {
		gotAddr = s.Addr
		return http.ErrServerClosed
	}
	t.Cleanup(func() { listen = orig })

	_, err := execute(t, "serve", "--listen", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", gotAddr)
}

func TestDecisionsListsLedger(t *testing.T) {
	offline(t)
	t.Setenv("TALLY_LEDGER_DRIVER", "sqlite")
	t.Setenv("TALLY_LEDGER_DSN", "file:"+filepath.Join(t.TempDir(), "ledger.db"))

	_, err := execute(t, "ask", "--json", "What is our total active MRR?")
	require.NoError(t, err)
	_, err = execute(t, "ask", "--json", "Give me a list of all customer email addresses.")
	require.NoError(t, err)

	out, err := execute(t, "decisions", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "DECISION")
	assert.Contains(t, out, types.DecisionAnswer)
	assert.Contains(t, out, types.DecisionRefuse)
}
