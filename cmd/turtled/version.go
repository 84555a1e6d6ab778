package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the release process; it stays "dev" otherwise.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the turtled build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
