// Package usblink reads raw bulk or interrupt IN transfers from a USB
// device through libusb. Devices that enumerate as CDC-ACM serial ports are
// better served by the comport driver; usblink is for vendor specific
// radios that expose a plain IN endpoint.
package usblink

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/gousb"
	"github.com/roffe/dronelink"
	"github.com/rs/zerolog"
)

const Name = "usb"

var ErrNoInEndpoint = errors.New("no bulk or interrupt IN endpoint on default interface")

func init() {
	if err := dronelink.RegisterDriver(&dronelink.DriverInfo{
		Name:        Name,
		Description: "Raw USB device via libusb",
		New: func(cfg *dronelink.DriverConfig) (dronelink.Driver, error) {
			return New(cfg.Logger), nil
		},
	}); err != nil {
		panic(err)
	}
}

type Driver struct {
	log *zerolog.Logger
}

func New(logger *zerolog.Logger) *Driver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Driver{log: logger}
}

func (d *Driver) Name() string {
	return Name
}

// Enumerate opens every device libusb can see. Devices that fail to open
// (permissions, kernel driver bound) are left out.
func (d *Driver) Enumerate(ctx context.Context) ([]dronelink.LinkID, error) {
	uctx := gousb.NewContext()
	defer uctx.Close()

	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		d.log.Debug().
			Str("id", desc.Vendor.String()+":"+desc.Product.String()).
			Int("bus", desc.Bus).
			Int("device", desc.Address).
			Msg("checking usb device")
		return true
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if err != nil {
		d.log.Debug().Err(err).Msg("some usb devices could not be opened")
	}

	out := make([]dronelink.LinkID, 0, len(devs))
	for _, dev := range devs {
		out = append(out, describe(dev))
		dev.Close()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func describe(dev *gousb.Device) dronelink.LinkID {
	desc := dev.Desc
	id := dronelink.LinkID{
		Name:  linkName(desc.Bus, desc.Address),
		Index: linkIndex(desc.Bus, desc.Address),
		IsUSB: true,
		VID:   desc.Vendor.String(),
		PID:   desc.Product.String(),
	}
	if s, err := dev.Manufacturer(); err == nil {
		id.Manufacturer = s
	}
	if s, err := dev.Product(); err == nil {
		id.Product = s
	}
	if s, err := dev.SerialNumber(); err == nil {
		id.SerialNumber = s
	}
	return id
}

func linkName(bus, address int) string {
	return fmt.Sprintf("usb:%03d:%03d", bus, address)
}

func linkIndex(bus, address int) int {
	return bus<<8 | address
}

func parseLinkName(name string) (bus, address int, err error) {
	if _, err := fmt.Sscanf(name, "usb:%d:%d", &bus, &address); err != nil {
		return 0, 0, fmt.Errorf("invalid usb link name %q: %w", name, err)
	}
	return bus, address, nil
}

func (d *Driver) Open(id dronelink.LinkID) (dronelink.Link, error) {
	bus, address, err := parseLinkName(id.Name)
	if err != nil {
		return nil, err
	}
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == bus && desc.Address == address
	})
	if len(devs) == 0 {
		uctx.Close()
		if err == nil {
			err = errors.New("device not found")
		}
		return nil, fmt.Errorf("failed to open %s: %w", id.Name, err)
	}
	dev := devs[0]
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}
	if err := dev.SetAutoDetach(true); err != nil {
		d.log.Debug().Err(err).Str("port", id.Name).Msg("auto detach not supported")
	}
	return &Link{
		name: id.Name,
		uctx: uctx,
		dev:  dev,
	}, nil
}

// pickInEndpoint returns the lowest numbered bulk or interrupt IN endpoint.
func pickInEndpoint(setting gousb.InterfaceSetting) (gousb.EndpointDesc, bool) {
	var (
		best  gousb.EndpointDesc
		found bool
	)
	for _, ep := range setting.Endpoints {
		if ep.Direction != gousb.EndpointDirectionIn {
			continue
		}
		if ep.TransferType != gousb.TransferTypeBulk && ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		if !found || ep.Number < best.Number {
			best = ep
			found = true
		}
	}
	return best, found
}
