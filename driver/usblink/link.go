package usblink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/roffe/dronelink"
)

type Link struct {
	name string
	uctx *gousb.Context
	dev  *gousb.Device

	done        func()
	ep          *gousb.InEndpoint
	readTimeout time.Duration
}

// Configure claims the default interface and its IN endpoint. Line settings
// such as baudrate have no meaning for a raw USB endpoint and are ignored.
func (l *Link) Configure(mode dronelink.LinkMode) error {
	if l.ep != nil {
		return errors.New("usb link already configured")
	}
	intf, done, err := l.dev.DefaultInterface()
	if err != nil {
		return fmt.Errorf("failed to claim default interface: %w", err)
	}
	epDesc, ok := pickInEndpoint(intf.Setting)
	if !ok {
		done()
		return ErrNoInEndpoint
	}
	ep, err := intf.InEndpoint(epDesc.Number)
	if err != nil {
		done()
		return fmt.Errorf("failed to open in endpoint %d: %w", epDesc.Number, err)
	}
	l.done = done
	l.ep = ep
	l.readTimeout = mode.ReadTimeout
	if l.readTimeout <= 0 {
		l.readTimeout = dronelink.DefaultReadTimeout
	}
	return nil
}

// Read waits at most the configured read timeout. An expired timeout is
// reported as (n, nil) like a serial port read.
func (l *Link) Read(b []byte) (int, error) {
	if l.ep == nil {
		return 0, errors.New("usb link not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.readTimeout)
	defer cancel()
	n, err := l.ep.ReadContext(ctx, b)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (l *Link) Close() error {
	if l.done != nil {
		l.done()
		l.done = nil
	}
	var err error
	if l.dev != nil {
		err = l.dev.Close()
		l.dev = nil
	}
	if l.uctx != nil {
		if cerr := l.uctx.Close(); err == nil {
			err = cerr
		}
		l.uctx = nil
	}
	return err
}
