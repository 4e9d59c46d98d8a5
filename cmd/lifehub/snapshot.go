package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lifehub/internal/cli"
	"lifehub/internal/services"
)

var snapshotEmail string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the budget snapshot of a user",
	Long: `Print income, total expenses, savings and the per-category breakdown
for the user with the given email.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotEmail, "email", "", "email of the user (required)")
	_ = snapshotCmd.MarkFlagRequired("email")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.LoadConfig(nil)
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	be, err := cli.OpenBackend(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer be.Cleanup()

	gateway := services.NewGateway(be.Store, services.WithLogger(logger.Logger))
	user, err := gateway.UserByEmail(cmd.Context(), snapshotEmail)
	if err != nil {
		return err
	}
	view, err := gateway.BudgetView(cmd.Context(), user.ID)
	if err != nil {
		return err
	}
	return printSnapshot(cmd.OutOrStdout(), view)
}

func printSnapshot(out io.Writer, view services.BudgetView) error {
	s := view.Snapshot
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "User\t%s <%s>\n", view.User.Name, view.User.Email)
	fmt.Fprintf(tw, "Income\t%s\n", s.Income)
	fmt.Fprintf(tw, "Expenses\t%s\n", s.TotalExpenses)
	fmt.Fprintf(tw, "Savings\t%s\n", s.Savings)
	if pct, ok := view.SpendPercent(); ok {
		fmt.Fprintf(tw, "Spent\t%.1f%%\n", pct)
	}
	fmt.Fprintln(tw)
	for _, row := range s.CategoryTotals.Rows() {
		fmt.Fprintf(tw, "%s\t%s\n", row.Category.Label(), row.Amount)
	}
	if !s.Uncategorized.IsZero() {
		fmt.Fprintf(tw, "Uncategorized\t%s\n", s.Uncategorized)
	}
	return tw.Flush()
}
