package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jroimartin/gocui"
	"github.com/roffe/dronelink"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// maxLines caps the packet view before it is cleared.
const maxLines = 50000

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch packets in a terminal view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		// gocui owns the terminal, the session reports through its events.
		quiet := zerolog.New(io.Discard)
		s, err := openSession(cmd, cfg, &quiet)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := gocui.NewGui(gocui.OutputNormal)
		if err != nil {
			return err
		}
		defer g.Close()
		g.SetManagerFunc(monitorLayout)
		// Start and Stop reset the framer, so they run on the polling goroutine.
		toggle := make(chan struct{}, 1)
		if err := monitorKeybindings(g, toggle); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		errg, gctx := errgroup.WithContext(ctx)

		var lines int
		errg.Go(func() error {
			return frameLoop(gctx, cfg.FrameInterval(), func() error {
				var toggleErr error
				select {
				case <-toggle:
					toggleErr = toggleReading(s)
				default:
				}
				events := drainEvents(s)
				if toggleErr != nil {
					events = append(events, dronelink.Event{Type: dronelink.EventTypeWarning, Details: toggleErr.Error()})
				}
				readErr := checkReading(s)
				p, ok := s.Poll()
				stats := s.Stats()
				state := s.State()
				port := s.Port()
				g.Update(func(g *gocui.Gui) error {
					if ok {
						v, err := g.View("packets")
						if err != nil {
							return err
						}
						if lines >= maxLines {
							v.Clear()
							lines = 0
						}
						fmt.Fprintf(v, " %s || %s\n", p.Time.Format("15:04:05.000"), p.String())
						lines++
					}
					if len(events) > 0 {
						v, err := g.View("events")
						if err != nil {
							return err
						}
						for _, e := range events {
							fmt.Fprintln(v, e.String())
						}
					}
					return renderInfo(g, port, state, stats)
				})
				return readErr
			})
		})
		errg.Go(func() error {
			<-gctx.Done()
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return nil
		})

		if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
			cancel()
			errg.Wait()
			return err
		}
		cancel()
		return errg.Wait()
	},
}

func renderInfo(g *gocui.Gui, port dronelink.LinkID, state dronelink.RunState, st dronelink.Stats) error {
	v, err := g.View("info")
	if err != nil {
		return err
	}
	v.Clear()
	fmt.Fprintf(v, "port: %s\n", port.String())
	fmt.Fprintf(v, "state: %s\n", state)
	fmt.Fprintf(v, "packets: %d\n", st.Packets)
	fmt.Fprintf(v, "corrupted: %d\n", st.Corrupted)
	fmt.Fprintf(v, "recv: %d\n", st.RecvBytes)
	fmt.Fprintf(v, "dropped: %d\n", st.DroppedBytes)
	return nil
}

func monitorLayout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("info", 0, 0, 25, 8); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
		v.Title = "Info"
	}

	if v, err := g.SetView("help", 0, 9, 25, 15); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Wrap = true
		v.Title = "Help"
		fmt.Fprintln(v, "<Q, Ctrl-C> Quit")
		fmt.Fprintln(v, "<Space> Autoscroll")
		fmt.Fprintln(v, "<S> Stop/Start")
		fmt.Fprintln(v, "<C> Clear")
	}

	if v, err := g.SetView("events", 0, 16, 25, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Autoscroll = true
		v.Wrap = true
		v.Title = "Events"
	}

	if v, err := g.SetView("packets", 26, 0, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.SelFgColor = gocui.ColorCyan
		v.Autoscroll = true
		v.Highlight = true
		v.Title = "Packets"
		if _, err := g.SetCurrentView("packets"); err != nil {
			return err
		}
	}
	return nil
}

func toggleReading(s *dronelink.Session) error {
	if s.Stop() {
		return nil
	}
	return s.Start()
}

func monitorKeybindings(g *gocui.Gui, toggle chan<- struct{}) error {
	quit := func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }
	if err := g.SetKeybinding("", 'q', gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", gocui.KeySpace, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = !v.Autoscroll
			return nil
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", 'c', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.Autoscroll = true
			v.Clear()
			v.SetOrigin(0, 0)
			return nil
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", 's', gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			select {
			case toggle <- struct{}{}:
			default:
			}
			return nil
		}); err != nil {
		return err
	}
	if err := g.SetKeybinding("packets", gocui.KeyArrowUp, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, -1, false)
			return nil
		}); err != nil {
		return err
	}
	return g.SetKeybinding("packets", gocui.KeyArrowDown, gocui.ModNone,
		func(g *gocui.Gui, v *gocui.View) error {
			v.MoveCursor(0, 1, false)
			return nil
		})
}
