package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "ladderbot",
		Short: "Discord development assistant for the NeonLadder community",
		Long:  `LadderBot bridges a Discord server with GitHub issues and the Claude CLI: it answers questions, fetches READMEs, turns channel messages into tracker issues, and provisions the server layout from configuration.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.ladderbot/config.yaml)")

	rootCmd.AddCommand(
		newStartCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show LadderBot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("LadderBot v%s\n", version)
		},
	}
}
