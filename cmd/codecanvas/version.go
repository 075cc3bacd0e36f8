package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/codecanvas/pkg/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of codecanvas",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codecanvas version %s\n", server.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
