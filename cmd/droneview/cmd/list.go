package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ports the selected driver can open",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		s, err := newSession(cmd, cfg, &log.Logger)
		if err != nil {
			return err
		}
		ids := s.FindPorts(cmd.Context())
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintf(out, "no available ports for %s\n", s.Driver().Name())
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id.String())
		}
		return nil
	},
}
