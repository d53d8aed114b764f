package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/catalog"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/search"
)

var downloadCmd = &cobra.Command{
	Use:   "download <bv|query>...",
	Short: "Download audio for videos or search results",
	Long: `Resolve each argument and download its audio.

A bv is looked up exactly. Any other argument is searched and its best match
is downloaded, or every match with --all. Interrupting waits for downloads in
progress; the rest are left queued.

Examples:
  songcat download BV1xx411c7mD
  songcat download "rolling girl" --format flac
  songcat download 歌回 --all --workers 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownloadCmd,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().BoolP("all", "a", false, "Download every search match, not just the best")
	downloadCmd.Flags().StringP("format", "f", "", "Audio format (default from config)")
	downloadCmd.Flags().IntP("workers", "w", 0, "Parallel downloads (default from config)")
	downloadCmd.Flags().String("source", "cli", "Source name recorded in history")
}

func runDownloadCmd(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	format, _ := cmd.Flags().GetString("format")
	workers, _ := cmd.Flags().GetInt("workers")
	source, _ := cmd.Flags().GetString("source")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if workers > 0 {
		a.Config.Download.Workers = workers
	}

	w := cmd.OutOrStdout()
	var records []catalog.Record
	for _, arg := range args {
		res, err := a.Search.Search(cmd.Context(), arg)
		if errors.Is(err, search.ErrNoResults) {
			colorWarning.Fprintf(w, "No results for %q, skipping\n", arg)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolve %q: %w", arg, err)
		}
		if all || res.Source == search.SourceLookup {
			records = append(records, res.Records...)
		} else {
			records = append(records, res.Records[0])
		}
	}
	if len(records) == 0 {
		return errors.New("nothing to download")
	}

	added := a.Enqueue(records, source, format)
	if !jsonOutput {
		fmt.Fprintf(w, "Queued %d of %d tasks, output to %s\n", added, len(records), a.Config.Paths.MusicDir)
		if skipped := len(records) - added; skipped > 0 {
			colorWarning.Fprintf(w, "Skipped %d already in history (see 'songcat history clear')\n", skipped)
		}
		fmt.Fprintln(w)
	}

	// The queue's totals include tasks seeded from history, so count this
	// run's outcomes from its events.
	var completed, failed int
	runner := a.Runner()
	runner.OnEvent(func(e events.Event) {
		switch e.(type) {
		case *events.TaskCompleted:
			completed++
		case *events.TaskFailed:
			failed++
		}
		if !jsonOutput {
			printEvent(w, e)
		}
	})
	snap, runErr := runner.Run(cmd.Context())

	if jsonOutput {
		out := map[string]any{"completed": completed, "failed": failed, "pending": snap.Pending, "tasks": a.Queue.Tasks()}
		if err := printJSON(w, out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "\n%s completed, %s failed", colorSuccess.Sprint(completed), colorError.Sprint(failed))
		if snap.Pending > 0 {
			fmt.Fprintf(w, ", %s still pending", colorWarning.Sprint(snap.Pending))
		}
		fmt.Fprintln(w)
	}
	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d downloads failed", failed)
	}
	return nil
}

func printEvent(w io.Writer, e events.Event) {
	switch ev := e.(type) {
	case *events.TaskStarted:
		fmt.Fprintf(w, "  %s %s %s\n", colorInfo.Sprint("start"), ev.EntityID(), truncate(ev.Title, 60))
	case *events.TaskCompleted:
		fmt.Fprintf(w, "  %s %s -> %s (%s)\n", colorSuccess.Sprint("done "), ev.EntityID(), ev.OutputFile, formatMillis(ev.DurationMS))
	case *events.TaskFailed:
		fmt.Fprintf(w, "  %s %s %s\n", colorError.Sprint("fail "), ev.EntityID(), firstLine(ev.Reason))
	}
}

func formatMillis(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
