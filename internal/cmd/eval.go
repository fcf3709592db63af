package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davidahmann/tally/internal/eval"
)

// ErrEvalFailed is returned when any case scores below 1 or breaks the
// envelope schema.
var ErrEvalFailed = errors.New("evaluation failed")

var (
	evalSuite    string
	evalOut      string
	evalParallel int
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation suite and write eval_results.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "eval")
		defer span.End()

		suite, err := loadSuite(evalSuite)
		if err != nil {
			return err
		}

		_, a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := eval.Run(ctx, a.Agent, suite, evalParallel)
		if err != nil {
			return err
		}

		if evalOut != "" {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding report: %w", err)
			}
			if err := os.WriteFile(evalOut, append(data, '\n'), 0o600); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			log.Info().Str("path", evalOut).Int("tests", len(report.Tests)).Msg("eval report written")
		}

		printReport(cmd.OutOrStdout(), report)
		if !report.Passed() {
			return ErrEvalFailed
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalSuite, "suite", "", "suite YAML (default: built-in suite)")
	evalCmd.Flags().StringVar(&evalOut, "out", "eval_results.json", "report path, empty to skip")
	evalCmd.Flags().IntVar(&evalParallel, "parallel", 4, "questions in flight")
	rootCmd.AddCommand(evalCmd)
}

func loadSuite(path string) (eval.Suite, error) {
	if path == "" {
		return eval.DefaultSuite()
	}
	return eval.LoadSuite(path)
}

func printReport(w io.Writer, report eval.Report) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, res := range report.Tests {
		mark := pass("✓")
		if !res.Passed() {
			mark = fail("✗")
		}
		fmt.Fprintf(w, "%s %-4s %-7s %s\n", mark, res.ID, res.AgentOutput.Decision, res.Question)
		if res.SchemaError != "" {
			fmt.Fprintf(w, "    schema: %s\n", res.SchemaError)
		}
	}

	fmt.Fprintf(w, "\nsuite %s: %d tests\n", report.Suite, len(report.Tests))
	for _, m := range eval.Metrics {
		v := report.Summary[m]
		if v == nil {
			fmt.Fprintf(w, "  %-32s n/a\n", m)
			continue
		}
		fmt.Fprintf(w, "  %-32s %.2f\n", m, *v)
	}
	if report.Passed() {
		fmt.Fprintln(w, pass("PASS"))
	} else {
		fmt.Fprintln(w, fail("FAIL"))
	}
}

