package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/skillflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of skillflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "skillflow version %s\n", strings.TrimSpace(skillflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
