package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "codewatch",
		Short: "Watch a forum topic and announce new promo codes",
		Long: `codewatch polls the last page of a forum topic, extracts promotional
codes from its posts and posts every code it has not seen recently to
GroupMe, Discord and Slack.

Configuration comes from defaults, an optional YAML file (--config or
CODEWATCH_CONFIG) and environment variables, in that order.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CODEWATCH_CONFIG"), "path to a YAML config file")

	cmd.AddCommand(
		newRunCmd(&configPath),
		newScanCmd(&configPath),
		newVersionCmd(),
	)
	return cmd
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the polling daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *configPath, cmd.OutOrStdout())
		},
	}
}

func newScanCmd(configPath *string) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Fetch the topic once and print the codes found, without notifying",
		Long: `scan fetches the last page of the topic once and prints every code on it,
sorted, one per line. Nothing is sent to any channel. Logs go to stderr so
the output can be piped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), *configPath, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.links, "links", false, "print the redeem link next to each code")
	cmd.Flags().BoolVar(&opts.posts, "posts", false, "print an excerpt of each post on the page")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codewatch %s\n", version)
		},
	}
}
