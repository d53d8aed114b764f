package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/ranking"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and maintain the local catalog",
}

var catalogMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge every *data.json fragment into one catalog",
	Long: `Merge every *data.json fragment in the data dir, newest first.

A bv present in several fragments keeps the record from the fragment that
sorts last by file name.

Examples:
  songcat catalog merge                       # Show merged size per source
  songcat catalog merge --out all.json        # Write the merged catalog`,
	Args: cobra.NoArgs,
	RunE: runCatalogMerge,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog, falling back to the platform",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogSearch,
}

var catalogLookupCmd = &cobra.Command{
	Use:   "lookup <bv>",
	Short: "Look up one video by bv",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogLookup,
}

var catalogFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter the merged catalog by keywords",
	Long: `Filter the merged catalog.

--keep keeps records whose field contains any of the words; --remove drops
them. Both take comma-separated words and match case-insensitively.

Examples:
  songcat catalog filter --keep 歌回,cover
  songcat catalog filter --remove 切片 --field author --out clean.json`,
	Args: cobra.NoArgs,
	RunE: runCatalogFilter,
}

var catalogExtendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Resolve *extend.json id lists into catalog records",
	Args:  cobra.NoArgs,
	RunE:  runCatalogExtend,
}

var catalogExtendAddCmd = &cobra.Command{
	Use:   "add <bv>...",
	Short: "Add video ids to an extend list for the next 'catalog extend'",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogExtendAdd,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogMergeCmd, catalogSearchCmd, catalogLookupCmd, catalogFilterCmd, catalogExtendCmd)
	catalogExtendCmd.AddCommand(catalogExtendAddCmd)
	catalogExtendAddCmd.Flags().String("list", "manual_", "Extend list name, stored as <list>extend.json")

	catalogMergeCmd.Flags().StringP("out", "o", "", "Write the merged catalog to this file")
	catalogSearchCmd.Flags().IntP("limit", "n", 20, "Maximum results to show (0 for all)")
	catalogFilterCmd.Flags().StringSlice("keep", nil, "Keep records containing any of these words")
	catalogFilterCmd.Flags().StringSlice("remove", nil, "Drop records containing any of these words")
	catalogFilterCmd.Flags().String("field", "title", "Field to match (title or author)")
	catalogFilterCmd.Flags().StringP("out", "o", "", "Write the filtered catalog to this file")
}

func runCatalogMerge(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.LoadCatalog()
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	a.Ranker.SortByDateDesc(c)

	if out != "" {
		if err := c.Save(out); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, map[string]any{"records": c.Len(), "out": out})
	}
	fmt.Fprintf(w, "Merged %s records", colorSuccess.Sprint(c.Len()))
	if out != "" {
		fmt.Fprintf(w, " into %s", out)
	}
	fmt.Fprintln(w)
	return nil
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Search.Search(cmd.Context(), query)
	w := cmd.OutOrStdout()
	if errors.Is(err, search.ErrNoResults) {
		return printNoResults(w, query, a.Search.Suggest(query, 5))
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	records := res.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if jsonOutput {
		return printJSON(w, map[string]any{"query": res.Query, "source": res.Source, "total": len(res.Records), "records": records})
	}
	fmt.Fprintf(w, "Found %d results for %q (%s)\n\n", len(res.Records), res.Query, res.Source)
	printRecords(w, records)
	return nil
}

func runCatalogLookup(cmd *cobra.Command, args []string) error {
	if !search.IsBV(args[0]) {
		return fmt.Errorf("not a bv: %s", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Search.Search(cmd.Context(), args[0])
	w := cmd.OutOrStdout()
	if errors.Is(err, search.ErrNoResults) {
		return fmt.Errorf("%s: not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	if jsonOutput {
		return printJSON(w, res.Records[0])
	}
	printRecord(w, res.Records[0])
	return nil
}

func runCatalogFilter(cmd *cobra.Command, args []string) error {
	keep, _ := cmd.Flags().GetStringSlice("keep")
	remove, _ := cmd.Flags().GetStringSlice("remove")
	fieldName, _ := cmd.Flags().GetString("field")
	out, _ := cmd.Flags().GetString("out")

	field, err := catalog.ParseField(fieldName)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.LoadCatalog()
	if err != nil {
		return err
	}
	before := c.Len()
	if len(keep) > 0 {
		if err := c.FilterKeep(keep, field); err != nil {
			return err
		}
	}
	if err := c.RemoveBlacklist(remove, field); err != nil {
		return err
	}
	a.Ranker.SortByDateDesc(c)

	if out != "" {
		if err := c.Save(out); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, map[string]any{"before": before, "after": c.Len(), "records": c.Records()})
	}
	fmt.Fprintf(w, "%d of %d records kept\n\n", c.Len(), before)
	printRecords(w, c.Records())
	return nil
}

func runCatalogExtend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	crawler, err := a.Crawler()
	if err != nil {
		return err
	}
	n, err := crawler.ResolveExtend(cmd.Context())
	if err != nil {
		return fmt.Errorf("extend failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, map[string]any{"resolved": n})
	}
	fmt.Fprintf(w, "Resolved %s extend records\n", colorSuccess.Sprint(n))
	return nil
}

func runCatalogExtendAdd(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetString("list")

	ids := make([]string, 0, len(args))
	for _, arg := range args {
		if !search.IsBV(arg) {
			return fmt.Errorf("%q is not a video id", arg)
		}
		ids = append(ids, "BV"+strings.TrimSpace(arg)[2:])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := catalog.AppendExtendIDs(a.Config.Paths.DataDir, list, ids)
	if err != nil {
		return fmt.Errorf("extend add: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, map[string]any{"added": n, "list": list + catalog.ExtendSuffix})
	}
	fmt.Fprintf(w, "Added %s ids to %s\n", colorSuccess.Sprint(n), list+catalog.ExtendSuffix)
	return nil
}

func printNoResults(w io.Writer, query string, suggestions []ranking.Suggestion) error {
	if jsonOutput {
		return printJSON(w, map[string]any{"query": query, "total": 0, "suggestions": suggestions})
	}
	colorWarning.Fprintf(w, "No results for %q\n", query)
	if len(suggestions) > 0 {
		fmt.Fprintln(w, "\nDid you mean:")
		for _, s := range suggestions {
			fmt.Fprintf(w, "  %s  %s\n", s.Record.Title, colorInfo.Sprint(s.Record.BV))
		}
	}
	return nil
}

func printRecords(w io.Writer, records []catalog.Record) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(w, "  %-3s %-48s %-16s %-10s %s\n", "#", "TITLE", "AUTHOR", "DATE", "BV")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 94))
	for i, r := range records {
		fmt.Fprintf(w, "  %-3d %-48s %-16s %-10s %s\n",
			i+1, truncate(r.Title, 48), truncate(r.Author, 16), r.Date, colorInfo.Sprint(r.BV))
	}
}

func printRecord(w io.Writer, r catalog.Record) {
	colorTitle.Fprintln(w, r.Title)
	fmt.Fprintf(w, "  Author: %s\n", r.Author)
	fmt.Fprintf(w, "  Date:   %s\n", r.Date)
	fmt.Fprintf(w, "  BV:     %s\n", r.BV)
	if r.URL != "" {
		fmt.Fprintf(w, "  URL:    %s\n", r.URL)
	}
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
