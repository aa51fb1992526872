package cmd

import (
	"github.com/opentdf/contextvault/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ctxvault version",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")
		exitOnErr("could not write version", printResult(cmd.OutOrStdout(), format, version.GetVersion()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("output", "yaml", "output format (yaml or json)")
}
