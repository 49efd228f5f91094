package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/roffe/dronelink"
	"github.com/roffe/dronelink/internal/config"
	"github.com/roffe/dronelink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "droneview",
	Short:        "Telemetry packet viewer for serial and USB links",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool(flagDebug)
		logging.SetDebug(debug)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagDriver   = "driver"
	flagPort     = "port"
	flagBaudrate = "baudrate"
	flagConfig   = "config"
	flagDebug    = "debug"
	flagWait     = "wait"
	flagFPS      = "fps"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagDriver, "a", config.DefaultDriver, "what driver to use")
	pf.StringP(flagPort, "p", config.DefaultPort, "port name, * = first available, ? = prompt")
	pf.IntP(flagBaudrate, "b", dronelink.DefaultBaudrate, "baudrate")
	pf.StringP(flagConfig, "c", "", "toml config file")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.UintP(flagWait, "w", 1, "auto connect attempts, one second apart")
	pf.Int(flagFPS, config.DefaultFPS, "frames per second")
}

// loadSettings reads --config, then lets explicitly set flags win.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	pf := cmd.Flags()
	cfg := config.Default()
	if path, _ := pf.GetString(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if pf.Changed(flagDriver) {
		cfg.Driver, _ = pf.GetString(flagDriver)
	}
	if pf.Changed(flagPort) {
		cfg.Port, _ = pf.GetString(flagPort)
	}
	if pf.Changed(flagBaudrate) {
		cfg.Session.Mode.BaudRate, _ = pf.GetInt(flagBaudrate)
	}
	if pf.Changed(flagWait) {
		cfg.WaitAttempts, _ = pf.GetUint(flagWait)
	}
	if pf.Changed(flagFPS) {
		cfg.FPS, _ = pf.GetInt(flagFPS)
	}
	if err := cfg.Session.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newSession builds a session whose driver and session log through logger.
func newSession(cmd *cobra.Command, cfg config.Settings, logger *zerolog.Logger) (*dronelink.Session, error) {
	debug, _ := cmd.Flags().GetBool(flagDebug)
	driver, err := dronelink.NewDriver(cfg.Driver, &dronelink.DriverConfig{
		Debug:            debug,
		Logger:           logger,
		AdditionalConfig: cfg.DriverOptions,
	})
	if err != nil {
		return nil, err
	}
	sc := cfg.Session
	sc.Logger = logger
	return dronelink.New(sc, driver)
}

// openSession connects, initializes and starts a session according to cfg.
func openSession(cmd *cobra.Command, cfg config.Settings, logger *zerolog.Logger) (*dronelink.Session, error) {
	ctx := cmd.Context()
	s, err := newSession(cmd, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := connect(ctx, s, cfg); err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, err
	}
	logger.Info().Str("port", s.Port().String()).Str("mode", s.Config().Mode.String()).Msg("reading")
	return s, nil
}

func connect(ctx context.Context, s *dronelink.Session, cfg config.Settings) error {
	switch cfg.Port {
	case "*":
		if cfg.WaitAttempts > 1 {
			return s.AutoConnectRetry(ctx, cfg.WaitAttempts, cfg.WaitDelay)
		}
		return s.AutoConnect(ctx)
	case "?":
		id, err := promptPort(s.FindPorts(ctx))
		if err != nil {
			return err
		}
		return s.Connect(id)
	}
	for _, id := range s.FindPorts(ctx) {
		if id.Name == cfg.Port {
			return s.Connect(id)
		}
	}
	// Not enumerated, let the driver try the name as given.
	return s.Connect(dronelink.LinkID{Name: cfg.Port})
}

func promptPort(ids []dronelink.LinkID) (dronelink.LinkID, error) {
	if len(ids) == 0 {
		return dronelink.LinkID{}, dronelink.ErrNoPortAvailable
	}
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = id.String()
	}
	prompt := promptui.Select{
		Label: "Select port",
		Items: items,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return dronelink.LinkID{}, fmt.Errorf("port prompt: %w", err)
	}
	return ids[idx], nil
}

// frameLoop calls frame once per tick until ctx is done or frame returns an
// error. errDone ends the loop cleanly.
func frameLoop(ctx context.Context, interval time.Duration, frame func() error) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := frame(); err != nil {
				if errors.Is(err, errDone) {
					return nil
				}
				return err
			}
		}
	}
}

var errDone = errors.New("done")

// checkReading turns a receiver that died into the error that killed it.
func checkReading(s *dronelink.Session) error {
	if s.State() == dronelink.Running && !s.IsReading() {
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%s stopped reading", s.PortName())
	}
	return nil
}

func drainEvents(s *dronelink.Session) []dronelink.Event {
	var out []dronelink.Event
	for {
		select {
		case e := <-s.Event():
			out = append(out, e)
		default:
			return out
		}
	}
}
