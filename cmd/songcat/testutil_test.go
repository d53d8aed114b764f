package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/qingchenyouforcc/neuroSangSpider-sub000/internal/app"
)

// testEnv is a config file plus the data and music dirs it points at.
type testEnv struct {
	config string
	data   string
	music  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	root := t.TempDir()
	env := testEnv{
		config: filepath.Join(root, "config.toml"),
		data:   filepath.Join(root, "data"),
		music:  filepath.Join(root, "music"),
	}
	require.NoError(t, os.MkdirAll(env.music, 0755))

	content := `
[log]
level = "error"

[paths]
data_dir = "` + env.data + `"
music_dir = "` + env.music + `"

[download]
workers = 2
command = ["true", "{url}"]
poll_interval = "10ms"

[search]
requests_per_second = 0

[[crawl.sources]]
name = "neuro"
user_id = "1880487363"
`
	require.NoError(t, os.WriteFile(env.config, []byte(content), 0644))
	return env
}

func (e testEnv) touch(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(e.music, n), []byte("audio"), 0644))
	}
}

// runCLI executes the root command with args against env and returns stdout.
func runCLI(t *testing.T, env testEnv, opts []app.Option, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	jsonOutput, configPath, logLevel = false, "", ""
	appOptions = opts
	t.Cleanup(func() { appOptions = nil })
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", env.config}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default, since cobra commands are
// package globals shared across runs.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
