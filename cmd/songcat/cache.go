package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached search and lookup responses",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Cache.Prune(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int64{"pruned": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired responses\n", n)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Cache.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), colorSuccess.Sprint("Cache cleared"))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
