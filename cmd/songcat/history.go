package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/download"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished downloads",
	Args:  cobra.NoArgs,
	RunE:  runHistoryCmd,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all finished downloads",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (success, failed)")
	historyCmd.Flags().String("source", "", "Filter by source")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum rows (0 for all)")
}

func parseHistoryStatus(s string) (*download.Status, error) {
	if s == "" {
		return nil, nil
	}
	st := download.Status(strings.ToLower(s))
	if !st.IsTerminal() {
		return nil, fmt.Errorf("invalid status %q: must be success or failed", s)
	}
	return &st, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	statusFlag, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")

	status, err := parseHistoryStatus(statusFlag)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.History.List(cmd.Context(), download.HistoryFilter{Status: status, Source: source, Limit: limit})
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No finished downloads")
		return nil
	}

	fmt.Fprintf(w, "  %-8s %-14s %-44s %-10s %s\n", "STATUS", "BV", "TITLE", "SOURCE", "FINISHED")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 96))
	for _, t := range rows {
		st := colorSuccess.Sprintf("%-8s", t.Status)
		if t.Status == download.StatusFailed {
			st = colorError.Sprintf("%-8s", t.Status)
		}
		fmt.Fprintf(w, "  %s %-14s %-44s %-10s %s\n", st, t.BV, truncate(t.Title, 44), t.Source, t.FinishedAt.Local().Format("2006-01-02 15:04"))
		if t.ErrorMsg != "" {
			fmt.Fprintf(w, "           %s\n", colorError.Sprint(truncate(firstLine(t.ErrorMsg), 80)))
		}
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.History.Clear(cmd.Context())
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"cleared": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history entries\n", n)
	return nil
}
