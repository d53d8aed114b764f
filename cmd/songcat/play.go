package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/app"
	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/playqueue"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Manage the playback queue",
	Long: `Manage the playback queue.

Entries are files in the music dir. The queue and the current position are
saved to the session file after every command and restored on the next one;
files deleted in the meantime are dropped.`,
}

var playAddCmd = &cobra.Command{
	Use:   "add [file]...",
	Short: "Append files to the queue",
	RunE:  runPlayAdd,
}

var playListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the queue",
	Args:  cobra.NoArgs,
	RunE:  runPlayList,
}

var playRemoveCmd = &cobra.Command{
	Use:   "remove <position|file>",
	Short: "Remove an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayRemove,
}

var playUpCmd = &cobra.Command{
	Use:   "up <position>",
	Short: "Move an entry one place earlier",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayMove(true),
}

var playDownCmd = &cobra.Command{
	Use:   "down <position>",
	Short: "Move an entry one place later",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayMove(false),
}

var playNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Advance to the next entry",
	Args:  cobra.NoArgs,
	RunE:  runPlayStep(true),
}

var playPrevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go back to the previous entry",
	Args:  cobra.NoArgs,
	RunE:  runPlayStep(false),
}

var playModeCmd = &cobra.Command{
	Use:   "mode [sequential|loop|single|random]",
	Short: "Show or set the play mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlayMode,
}

var playClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the queue",
	Args:  cobra.NoArgs,
	RunE:  runPlayClear,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.AddCommand(playAddCmd, playListCmd, playRemoveCmd, playUpCmd, playDownCmd,
		playNextCmd, playPrevCmd, playModeCmd, playClearCmd)
	playAddCmd.Flags().Bool("all", false, "Add every audio file in the music dir")
}

// resolveMusicFile accepts a path or a bare name inside the music dir.
func resolveMusicFile(musicDir, arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return filepath.Abs(arg)
	}
	p := filepath.Join(musicDir, arg)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("%s: no such file here or in %s", arg, musicDir)
	}
	return p, nil
}

// parsePosition converts a 1-based position argument into an index.
func parsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	return n - 1, nil
}

func runPlayAdd(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("give files to add or --all")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var paths []string
	if all {
		files, err := a.Library.List(cmd.Context(), a.Config.Paths.MusicDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}
	for _, arg := range args {
		p, err := resolveMusicFile(a.Config.Paths.MusicDir, arg)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}

	added, present := a.Play.AddMany(paths)
	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, map[string]any{"added": added, "present": present, "total": a.Play.Len()})
	}
	fmt.Fprintf(w, "Added %s", colorSuccess.Sprint(added))
	if present > 0 {
		fmt.Fprintf(w, ", %d already queued", present)
	}
	fmt.Fprintf(w, " (%d in queue)\n", a.Play.Len())
	return nil
}

func runPlayList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return printPlayQueue(cmd.OutOrStdout(), a)
}

func printPlayQueue(w io.Writer, a *app.App) error {
	items := a.Play.Items()
	if jsonOutput {
		return printJSON(w, a.Play.Snapshot(a.Config.Paths.MusicDir))
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return nil
	}
	fmt.Fprintf(w, "Queue (%d, %s):\n\n", len(items), a.Play.Mode())
	for i, p := range items {
		marker := " "
		name := filepath.Base(p)
		if i == a.Play.Index() {
			marker = colorSuccess.Sprint(">")
			name = colorTitle.Sprint(name)
		}
		fmt.Fprintf(w, " %s %3d  %s\n", marker, i+1, name)
	}
	return nil
}

func runPlayRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if i, perr := parsePosition(args[0]); perr == nil {
		err = a.Play.RemoveAt(i)
	} else {
		p, rerr := resolveMusicFile(a.Config.Paths.MusicDir, args[0])
		if rerr != nil {
			p = filepath.Join(a.Config.Paths.MusicDir, args[0])
		}
		err = a.Play.RemovePath(p)
	}
	if err != nil {
		return err
	}
	return printPlayQueue(cmd.OutOrStdout(), a)
}

func runPlayMove(up bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		i, err := parsePosition(args[0])
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if up {
			err = a.Play.MoveUp(i)
		} else {
			err = a.Play.MoveDown(i)
		}
		if err != nil {
			return err
		}
		return printPlayQueue(cmd.OutOrStdout(), a)
	}
}

func runPlayStep(forward bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var p string
		var ok bool
		if forward {
			p, ok = a.Play.Next()
		} else {
			p, ok = a.Play.Previous()
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(w, map[string]any{"path": p, "moved": ok, "index": a.Play.Index()})
		}
		if !ok {
			cur, _ := a.Play.Current()
			if cur == "" {
				fmt.Fprintln(w, "Queue is empty")
				return nil
			}
			colorWarning.Fprintf(w, "At the end of the queue (%s mode): %s\n", a.Play.Mode(), filepath.Base(cur))
			return nil
		}
		fmt.Fprintf(w, "Now playing: %s\n", colorTitle.Sprint(filepath.Base(p)))
		return nil
	}
}

func runPlayMode(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		m, err := playqueue.ParseMode(args[0])
		if err != nil {
			return err
		}
		a.Play.SetMode(m)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"mode": a.Play.Mode()})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Play mode: %s\n", a.Play.Mode())
	return nil
}

func runPlayClear(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n := a.Play.Len()
	a.Play.Clear()
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
	return nil
}
