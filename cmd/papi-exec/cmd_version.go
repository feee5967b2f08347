package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/papibridge/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(stdout, version.Banner("papi-exec"))
	},
}
