package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdpress/presto/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("presto %s (%s)\n", version.Version, version.Commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
