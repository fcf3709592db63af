package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/davidahmann/tally/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect safety policies",
}

var policyLintCmd = &cobra.Command{
	Use:   "lint [path]",
	Short: "Validate a policy file (default: the built-in policy)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "policy.lint")
		defer span.End()

		var (
			loaded policy.LoadedPolicy
			err    error
			source = "built-in"
		)
		if len(args) == 1 {
			source = args[0]
			loaded, err = policy.LoadPolicy(source)
		} else {
			loaded, err = policy.LoadDefault()
		}
		if err != nil {
			log.Error().Err(err).Str("file", source).Msg("policy load failed")
			return fmt.Errorf("policy %s: %w", source, err)
		}
		if _, err := policy.NewEngine(loaded); err != nil {
			log.Error().Err(err).Str("file", source).Msg("policy compile failed")
			return fmt.Errorf("policy %s: %w", source, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ok policy_id=%s policy_version=%s policy_hash=%s\n",
			loaded.Policy.PolicyID, loaded.Policy.PolicyVersion, loaded.Hash)
		return nil
	},
}

func init() {
	policyCmd.AddCommand(policyLintCmd)
	rootCmd.AddCommand(policyCmd)
}
