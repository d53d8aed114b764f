package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent queue events",
	Long: `Show queue events from the event log, newest first.

Examples:
  songcat events -n 50
  songcat events --bv BV1xx411c7mD
  songcat events --since 24h
  songcat events --prune 720h`,
	Args: cobra.NoArgs,
	RunE: runEventsCmd,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().Duration("prune", 0, "Delete events older than this first (e.g. 720h)")
	eventsCmd.Flags().String("bv", "", "Only events of one download task")
	eventsCmd.Flags().Duration("since", 0, "Only events newer than this (e.g. 24h)")
}

func runEventsCmd(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	prune, _ := cmd.Flags().GetDuration("prune")
	bv, _ := cmd.Flags().GetString("bv")
	since, _ := cmd.Flags().GetDuration("since")
	if bv != "" && since > 0 {
		return fmt.Errorf("--bv and --since cannot be combined")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if prune > 0 {
		n, err := a.Events.Prune(ctx, prune)
		if err != nil {
			return fmt.Errorf("prune events: %w", err)
		}
		a.Logger.Info("pruned events", "deleted", n, "older_than", prune)
	}

	var evs []events.RawEvent
	switch {
	case bv != "":
		evs, err = a.Events.ForEntity(ctx, events.EntityTask, bv)
		evs = newestFirst(evs, limit)
	case since > 0:
		evs, err = a.Events.Since(ctx, time.Now().Add(-since))
		evs = newestFirst(evs, limit)
	default:
		evs, err = a.Events.Recent(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, evs)
	}
	if len(evs) == 0 {
		fmt.Fprintln(w, "No events")
		return nil
	}

	fmt.Fprintf(w, "Recent Events (%d):\n\n", len(evs))
	fmt.Fprintf(w, "  %-10s %-16s %-20s %s\n", "TIME", "TYPE", "ENTITY", "DETAIL")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 72))
	registry := events.DefaultRegistry()
	now := time.Now()
	for _, raw := range evs {
		fmt.Fprintf(w, "  %-10s %-16s %-20s ", formatTimeAgo(raw.OccurredAt, now), raw.EventType, raw.EntityType+"/"+raw.EntityID)
		printEventDetail(w, registry, raw)
	}
	return nil
}

// newestFirst reverses oldest-first rows and keeps at most limit of them.
func newestFirst(evs []events.RawEvent, limit int) []events.RawEvent {
	out := make([]events.RawEvent, 0, len(evs))
	for i := len(evs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, evs[i])
	}
	return out
}

func printEventDetail(w io.Writer, registry *events.Registry, raw events.RawEvent) {
	e, err := registry.Unmarshal(raw)
	if err != nil {
		fmt.Fprintln(w, colorWarning.Sprint("(unreadable)"))
		return
	}
	switch ev := e.(type) {
	case *events.TaskAdded:
		fmt.Fprintf(w, "%s [%s]\n", truncate(ev.Title, 40), ev.FileType)
	case *events.TaskStarted:
		fmt.Fprintf(w, "%s (worker %d)\n", truncate(ev.Title, 40), ev.Worker)
	case *events.TaskCompleted:
		fmt.Fprintf(w, "%s -> %s\n", truncate(ev.Title, 40), ev.OutputFile)
	case *events.TaskFailed:
		fmt.Fprintf(w, "%s: %s\n", truncate(ev.Title, 40), colorError.Sprint(firstLine(ev.Reason)))
	case *events.QueueCompleted:
		fmt.Fprintf(w, "%d completed, %d failed\n", ev.Completed, ev.Failed)
	default:
		fmt.Fprintln(w)
	}
}

func formatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	ago := now.Sub(t)
	switch {
	case ago < time.Minute:
		return "just now"
	case ago < time.Hour:
		return fmt.Sprintf("%dm ago", int(ago.Minutes()))
	case ago < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(ago.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(ago.Hours()/24))
	}
}
