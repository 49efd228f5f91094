package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/roffe/dronelink"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(driversCmd)
}

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List registered drivers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name := color.New(color.FgHiCyan).SprintFunc()
		out := cmd.OutOrStdout()
		for _, d := range dronelink.ListDrivers() {
			fmt.Fprintf(out, "%s %s\n", name(fmt.Sprintf("%-10s", d.Name)), d.Description)
		}
	},
}
