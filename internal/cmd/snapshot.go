package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/contextblock"
	"github.com/davidahmann/tally/internal/dataset"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the aggregate context block the agent reasons over",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "snapshot")
		defer span.End()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		records, err := dataset.LoadCSV(cfg.DatasetPath)
		if err != nil {
			return fmt.Errorf("loading dataset: %w", err)
		}
		block := contextblock.Build(aggregate.Compute(records, aggregate.WithMinCardinality(cfg.MinCardinality)))

		out := cmd.OutOrStdout()
		if snapshotJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(block)
		}
		fmt.Fprintln(out, block.Text)
		fmt.Fprintf(out, "\ncontext_id: %s\n", block.ContextID)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the block as JSON")
	rootCmd.AddCommand(snapshotCmd)
}
