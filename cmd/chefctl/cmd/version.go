package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bringochef/chefctl/internal/output"
)

// Version is the build version, set at link time.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the CLI",
	Run: func(_ *cobra.Command, _ []string) {
		output.KeyValue("chefctl version", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
