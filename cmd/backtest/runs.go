package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsxjacky/portfolio-backtest/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List backtest runs saved in the result store",
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list (0 = all)")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Output.SQLitePath == "" {
		return errors.New("output.sqlite_path is not configured")
	}
	db, err := store.Open(cfg.Output.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTRATEGY\tPERIOD\tCAGR\tSHARPE\tMAX DD")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s..%s\t%.2f%%\t%.3f\t%.2f%%\n",
			r.ID[:8], r.CreatedAt.Format("2006-01-02 15:04"), r.Strategy, r.StartDate, r.EndDate,
			r.CAGR*100, r.Sharpe, r.MaxDrawdown*100)
	}
	return w.Flush()
}
