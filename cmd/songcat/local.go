package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var localCmd = &cobra.Command{
	Use:   "local",
	Short: "List downloaded audio files",
	Args:  cobra.NoArgs,
	RunE:  runLocalCmd,
}

func init() {
	rootCmd.AddCommand(localCmd)
}

func runLocalCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	files, err := a.Library.List(cmd.Context(), a.Config.Paths.MusicDir)
	if err != nil {
		return fmt.Errorf("list %s: %w", a.Config.Paths.MusicDir, err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, files)
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No audio files in %s\n", a.Config.Paths.MusicDir)
		return nil
	}

	var total time.Duration
	fmt.Fprintf(w, "  %-60s %8s\n", "FILE", "LENGTH")
	for _, f := range files {
		total += f.Duration
		fmt.Fprintf(w, "  %-60s %8s\n", truncate(f.Name, 60), formatClock(f.Duration))
	}
	fmt.Fprintf(w, "\n%d files, %s total\n", len(files), formatClock(total))
	return nil
}

// formatClock renders d as m:ss or h:mm:ss, and "-" when unknown.
func formatClock(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	s := int(d.Round(time.Second).Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
