package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davidahmann/tally/pkg/types"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print the decision envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "ask")
		defer span.End()

		_, a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		env, tr := a.Agent.Ask(ctx, args[0])
		log.Debug().
			Str("decision_id", tr.DecisionID).
			Str("reason_code", tr.ReasonCode).
			Str("path", tr.Path).
			Msg("ask complete")

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		}

		decision := color.GreenString(env.Decision)
		if env.Decision == types.DecisionRefuse {
			decision = color.RedString(env.Decision)
		}
		fmt.Fprintln(out, env.Answer)
		fmt.Fprintf(out, "\ndecision: %s\n", decision)
		fmt.Fprintf(out, "note:     %s\n", env.ReasoningNote)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the envelope as JSON")
	rootCmd.AddCommand(askCmd)
}
