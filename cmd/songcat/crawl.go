package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/crawl"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [source]...",
	Short: "Refresh catalog fragments from the configured uploaders",
	Long: `Fetch each configured uploader's video list, keep titles matching the
crawl keywords, drop blacklisted ones and write <source>data.json into the
data dir. Without arguments every source in [[crawl.sources]] is crawled.

A failing source is reported and does not stop the others.`,
	RunE: runCrawlCmd,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().Bool("extend", true, "Also resolve *extend.json id lists")
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	withExtend, _ := cmd.Flags().GetBool("extend")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := selectSources(a.Config.Crawl.Sources, args)
	if err != nil {
		return err
	}
	crawler, err := a.Crawler()
	if err != nil {
		return err
	}

	reports, err := crawler.CrawlSources(cmd.Context(), sources)
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	resolved := 0
	if withExtend {
		if resolved, err = crawler.ResolveExtend(cmd.Context()); err != nil {
			return fmt.Errorf("extend: %w", err)
		}
	}

	failed := 0
	for _, r := range reports {
		if r.Err != nil {
			failed++
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		type row struct {
			crawl.Report
			Error string `json:"error,omitempty"`
		}
		rows := make([]row, len(reports))
		for i, r := range reports {
			rows[i] = row{Report: r}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			}
		}
		if err := printJSON(w, map[string]any{"sources": rows, "extend_resolved": resolved}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "  %-16s %6s %8s %6s %8s\n", "SOURCE", "PAGES", "FETCHED", "KEPT", "TIME")
		for _, r := range reports {
			fmt.Fprintf(w, "  %-16s %6d %8d %6d %8s", r.Source, r.Pages, r.Fetched, r.Kept, r.Duration.Round(time.Millisecond))
			if r.Err != nil {
				fmt.Fprintf(w, "  %s", colorError.Sprint(r.Err))
			}
			fmt.Fprintln(w)
		}
		if withExtend {
			fmt.Fprintf(w, "\nResolved %d extend records\n", resolved)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(reports))
	}
	return nil
}

// selectSources picks the named sources, or all of them when names is empty.
func selectSources(all []crawl.Source, names []string) ([]crawl.Source, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("no [[crawl.sources]] configured")
	}
	if len(names) == 0 {
		return all, nil
	}
	var out []crawl.Source
	for _, name := range names {
		i := slices.IndexFunc(all, func(s crawl.Source) bool { return s.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		out = append(out, all[i])
	}
	return out, nil
}
