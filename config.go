package dronelink

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultPacketLen   = 10
	DefaultStartSymbol = 'i'
	DefaultStopSymbol  = '\n'
	DefaultBufferSize  = 4096
	DefaultBaudrate    = 9600
	DefaultReadTimeout = 50 * time.Millisecond
)

type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "N"
	case OddParity:
		return "O"
	case EvenParity:
		return "E"
	default:
		return "?"
	}
}

type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// LinkMode is the line configuration applied to a link by Session.Init.
type LinkMode struct {
	BaudRate    int
	DataBits    int
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
	// LowLatency asks drivers that support it to shorten device side
	// buffering (FTDI latency timer on Linux).
	LowLatency bool
}

func (m LinkMode) String() string {
	stop := 1
	if m.StopBits == TwoStopBits {
		stop = 2
	}
	return fmt.Sprintf("%d %d%s%d", m.BaudRate, m.DataBits, m.Parity, stop)
}

func DefaultLinkMode() LinkMode {
	return LinkMode{
		BaudRate:    DefaultBaudrate,
		DataBits:    8,
		Parity:      NoParity,
		StopBits:    OneStopBit,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Config is fixed for the lifetime of a Session.
type Config struct {
	PacketLen   int
	StartSymbol byte
	StopSymbol  byte
	BufferSize  int
	Mode        LinkMode
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		PacketLen:   DefaultPacketLen,
		StartSymbol: DefaultStartSymbol,
		StopSymbol:  DefaultStopSymbol,
		BufferSize:  DefaultBufferSize,
		Mode:        DefaultLinkMode(),
	}
}

func (c Config) Validate() error {
	if c.PacketLen < 1 {
		return fmt.Errorf("%w: packet length %d", ErrInvalidConfig, c.PacketLen)
	}
	if c.StartSymbol == c.StopSymbol {
		return fmt.Errorf("%w: start and stop symbol are both %q", ErrInvalidConfig, c.StartSymbol)
	}
	if c.BufferSize <= c.PacketLen {
		return fmt.Errorf("%w: buffer size %d must exceed packet length %d", ErrInvalidConfig, c.BufferSize, c.PacketLen)
	}
	if c.Mode.BaudRate <= 0 {
		return fmt.Errorf("%w: baudrate %d", ErrInvalidConfig, c.Mode.BaudRate)
	}
	return nil
}

func (c Config) framerConfig() FramerConfig {
	return FramerConfig{
		PacketLen:   c.PacketLen,
		StartSymbol: c.StartSymbol,
		StopSymbol:  c.StopSymbol,
	}
}
