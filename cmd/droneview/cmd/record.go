package cmd

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/roffe/dronelink/pkg/bar"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	recordCmd.Flags().IntP("count", "n", 100, "packets to capture")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Capture packets to a file, one hex line per packet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		if count <= 0 {
			return fmt.Errorf("count must be positive, got %d", count)
		}

		s, err := openSession(cmd, cfg, &log.Logger)
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		w := bufio.NewWriter(f)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		errg, gctx := errgroup.WithContext(ctx)

		progress := bar.New(count, "recording")
		var written int
		errg.Go(func() error {
			defer cancel()
			return frameLoop(gctx, cfg.FrameInterval(), func() error {
				if err := checkReading(s); err != nil {
					return err
				}
				p, ok := s.Poll()
				if !ok {
					return nil
				}
				if _, err := fmt.Fprintf(w, "%s %s\n", p.Time.Format("2006-01-02T15:04:05.000000"), hex.EncodeToString(p.Bytes())); err != nil {
					return err
				}
				written++
				progress.Add(1)
				if written >= count {
					return errDone
				}
				return nil
			})
		})
		errg.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case e := <-s.Event():
					log.Debug().Str("type", e.Type.String()).Msg(e.Details)
				}
			}
		})

		werr := errg.Wait()
		fmt.Fprintln(os.Stderr)
		if err := w.Flush(); err != nil && werr == nil {
			werr = err
		}
		log.Info().Int("packets", written).Str("file", args[0]).Msg(s.Stats().String())
		return werr
	},
}
