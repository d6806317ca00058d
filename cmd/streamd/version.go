package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"streamd/internal/manager"
)

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		inProcess := "no"
		if manager.InProcessBuilt() {
			inProcess = "yes"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "streamd %s (%s, in-process runtime: %s)\n", version, runtime.Version(), inProcess)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
