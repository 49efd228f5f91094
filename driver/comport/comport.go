// Package comport links to serial ports: Windows COM ports, Linux ttyS/ttyUSB/ttyACM
// and macOS cu.* devices.
package comport

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/roffe/dronelink"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const Name = "comport"

func init() {
	if err := dronelink.RegisterDriver(&dronelink.DriverInfo{
		Name:        Name,
		Description: "Serial port (COM / tty)",
		New: func(cfg *dronelink.DriverConfig) (dronelink.Driver, error) {
			return New(cfg.Logger), nil
		},
	}); err != nil {
		panic(err)
	}
}

type Driver struct {
	log *zerolog.Logger
	// list and open are swapped out in tests.
	list func() ([]*enumerator.PortDetails, error)
	open func(name string, mode *serial.Mode) (serial.Port, error)
}

func New(logger *zerolog.Logger) *Driver {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Driver{
		log:  logger,
		list: enumerator.GetDetailedPortsList,
		open: serial.Open,
	}
}

func (d *Driver) Name() string {
	return Name
}

// Enumerate probes every port the OS reports by opening and closing it.
func (d *Driver) Enumerate(ctx context.Context) ([]dronelink.LinkID, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	var out []dronelink.LinkID
	for _, port := range ports {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		d.log.Debug().Str("port", port.Name).Msg("checking port")
		p, err := d.open(port.Name, toSerialMode(dronelink.DefaultLinkMode()))
		if err != nil {
			d.log.Debug().Str("port", port.Name).Err(err).Msg("skipping port")
			continue
		}
		p.Close()
		out = append(out, linkID(port))
	}
	return out, nil
}

func linkID(port *enumerator.PortDetails) dronelink.LinkID {
	id := dronelink.LinkID{
		Name:  port.Name,
		Index: portIndex(port.Name),
	}
	if port.IsUSB {
		id.IsUSB = true
		id.VID = port.VID
		id.PID = port.PID
		id.SerialNumber = port.SerialNumber
		id.Product = port.Product
	}
	return id
}

// portIndex extracts the trailing number of a port name, COM7 -> 7,
// /dev/ttyUSB0 -> 0. Names without one sort after numbered ports.
func portIndex(name string) int {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return 1 << 16
	}
	n := 0
	for _, c := range name[start:end] {
		n = n*10 + int(c-'0')
		if n >= 1<<16 {
			return 1 << 16
		}
	}
	return n
}

func (d *Driver) Open(id dronelink.LinkID) (dronelink.Link, error) {
	name := id.Name
	if runtime.GOOS == "windows" {
		name = strings.ToUpper(name)
	}
	p, err := d.open(name, toSerialMode(dronelink.DefaultLinkMode()))
	if err != nil {
		return nil, fmt.Errorf("failed to open com port %q : %w", name, err)
	}
	return &Link{port: p, name: name, log: d.log}, nil
}

type Link struct {
	port serial.Port
	name string
	log  *zerolog.Logger
}

// Configure sets baudrate, framing and read timeout and discards whatever
// the OS buffered before the session started.
func (l *Link) Configure(mode dronelink.LinkMode) error {
	if err := l.port.SetMode(toSerialMode(mode)); err != nil {
		return fmt.Errorf("error setting comm state: %w", err)
	}
	if err := l.port.SetReadTimeout(mode.ReadTimeout); err != nil {
		return fmt.Errorf("error setting timeouts: %w", err)
	}
	if mode.LowLatency {
		if err := setLowLatency(l.name); err != nil {
			l.log.Warn().Err(err).Str("port", l.name).Msg("low latency not applied")
		}
	}
	return l.port.ResetInputBuffer()
}

func (l *Link) Read(b []byte) (int, error) {
	return l.port.Read(b)
}

func (l *Link) Close() error {
	l.port.ResetInputBuffer()
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("failed to close com port: %w", err)
	}
	return nil
}

func toSerialMode(m dronelink.LinkMode) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: m.BaudRate,
		DataBits: m.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	switch m.Parity {
	case dronelink.OddParity:
		mode.Parity = serial.OddParity
	case dronelink.EvenParity:
		mode.Parity = serial.EvenParity
	}
	if m.StopBits == dronelink.TwoStopBits {
		mode.StopBits = serial.TwoStopBits
	}
	return mode
}
