package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	dumpCmd.Flags().IntP("count", "n", 0, "stop after n packets, 0 = run until interrupted")
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print packets as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		s, err := openSession(cmd, cfg, &log.Logger)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		stamp := color.New(color.FgYellow).SprintFunc()
		var seen int
		err = frameLoop(cmd.Context(), cfg.FrameInterval(), func() error {
			for _, e := range drainEvents(s) {
				log.Debug().Str("type", e.Type.String()).Msg(e.Details)
			}
			if err := checkReading(s); err != nil {
				return err
			}
			p, ok := s.Poll()
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s || %s\n", stamp(p.Time.Format("15:04:05.000")), p.String())
			seen++
			if count > 0 && seen >= count {
				return errDone
			}
			return nil
		})
		log.Info().Msg(s.Stats().String())
		return err
	},
}
