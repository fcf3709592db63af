package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davidahmann/tally/internal/app"
)

var decisionsLimit int

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List recent decisions from the configured ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "decisions")
		defer span.End()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeFn, err := app.OpenLedger(cfg.Ledger)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer func() { _ = closeFn() }()
		}

		rows, err := store.ListDecisions(decisionsLimit)
		if err != nil {
			return fmt.Errorf("listing decisions: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tDECISION\tREASON\tPATH\tID")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.CreatedAt, row.Decision, row.ReasonCode, row.Path, row.DecisionID)
		}
		return tw.Flush()
	},
}

func init() {
	decisionsCmd.Flags().IntVar(&decisionsLimit, "limit", 20, "maximum rows")
	rootCmd.AddCommand(decisionsCmd)
}
