package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/roffe/dronelink/cmd/droneview/cmd"
	"github.com/roffe/dronelink/internal/logging"
	"github.com/rs/zerolog/log"

	// Init drivers
	_ "github.com/roffe/dronelink/driver/comport"
	_ "github.com/roffe/dronelink/driver/usblink"
	_ "github.com/roffe/dronelink/driver/virtual"
)

func main() {
	logging.ConfigureRuntime()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Setup interupt handler for ctrl-c
	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt)
	go func() {
		s := <-quitChan
		log.Info().Str("signal", s.String()).Msg("exiting")
		cancel()
		// Failsafe if there is deadlocks
		<-time.After(10 * time.Second)
		log.Fatal().Msg("took to long to shutdown, forcefully exiting")
	}()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
