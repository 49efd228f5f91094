// Package config loads droneview settings from a TOML file.
//
//	driver = "comport"
//	port = "*"
//	baudrate = 9600
//	parity = "N"
//	read_timeout = "50ms"
//	packet_len = 10
//	start_symbol = "i"
//	stop_symbol = "0x0a"
//	fps = 60
//
//	[driver_options]
//	interval = "20ms"
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/roffe/dronelink"
)

const (
	DefaultDriver = "comport"
	// DefaultPort selects the first available port.
	DefaultPort = "*"
	DefaultFPS  = 60
)

type Settings struct {
	Driver        string
	Port          string
	Session       dronelink.Config
	FPS           int
	WaitAttempts  uint
	WaitDelay     time.Duration
	DriverOptions map[string]string
}

func Default() Settings {
	return Settings{
		Driver:        DefaultDriver,
		Port:          DefaultPort,
		Session:       dronelink.DefaultConfig(),
		FPS:           DefaultFPS,
		WaitAttempts:  1,
		WaitDelay:     time.Second,
		DriverOptions: map[string]string{},
	}
}

// FrameInterval is the time budget of one rendered frame.
func (s Settings) FrameInterval() time.Duration {
	if s.FPS <= 0 {
		return time.Second / DefaultFPS
	}
	return time.Second / time.Duration(s.FPS)
}

type fileConfig struct {
	Driver        string            `toml:"driver"`
	Port          string            `toml:"port"`
	Baudrate      int               `toml:"baudrate"`
	DataBits      int               `toml:"data_bits"`
	Parity        string            `toml:"parity"`
	StopBits      int               `toml:"stop_bits"`
	ReadTimeout   string            `toml:"read_timeout"`
	LowLatency    bool              `toml:"low_latency"`
	PacketLen     int               `toml:"packet_len"`
	StartSymbol   string            `toml:"start_symbol"`
	StopSymbol    string            `toml:"stop_symbol"`
	BufferSize    int               `toml:"buffer_size"`
	FPS           int               `toml:"fps"`
	WaitAttempts  uint              `toml:"wait_attempts"`
	WaitDelay     string            `toml:"wait_delay"`
	DriverOptions map[string]string `toml:"driver_options"`
}

// Load reads path and overlays every key it defines onto Default().
func Load(path string) (Settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load config: %w", err)
	}
	return apply(Default(), raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(doc string) (Settings, error) {
	var raw fileConfig
	meta, err := toml.Decode(doc, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(Default(), raw, meta)
}

func apply(cfg Settings, raw fileConfig, meta toml.MetaData) (Settings, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if meta.IsDefined("driver") {
		cfg.Driver = strings.TrimSpace(raw.Driver)
	}
	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baudrate") {
		cfg.Session.Mode.BaudRate = raw.Baudrate
	}
	if meta.IsDefined("data_bits") {
		cfg.Session.Mode.DataBits = raw.DataBits
	}
	if meta.IsDefined("parity") {
		p, err := ParseParity(raw.Parity)
		if err != nil {
			return Settings{}, err
		}
		cfg.Session.Mode.Parity = p
	}
	if meta.IsDefined("stop_bits") {
		switch raw.StopBits {
		case 1:
			cfg.Session.Mode.StopBits = dronelink.OneStopBit
		case 2:
			cfg.Session.Mode.StopBits = dronelink.TwoStopBits
		default:
			return Settings{}, fmt.Errorf("parse stop_bits: %d", raw.StopBits)
		}
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return Settings{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.Session.Mode.ReadTimeout = d
	}
	if meta.IsDefined("low_latency") {
		cfg.Session.Mode.LowLatency = raw.LowLatency
	}
	if meta.IsDefined("packet_len") {
		cfg.Session.PacketLen = raw.PacketLen
	}
	if meta.IsDefined("start_symbol") {
		b, err := ParseSymbol(raw.StartSymbol)
		if err != nil {
			return Settings{}, fmt.Errorf("parse start_symbol: %w", err)
		}
		cfg.Session.StartSymbol = b
	}
	if meta.IsDefined("stop_symbol") {
		b, err := ParseSymbol(raw.StopSymbol)
		if err != nil {
			return Settings{}, fmt.Errorf("parse stop_symbol: %w", err)
		}
		cfg.Session.StopSymbol = b
	}
	if meta.IsDefined("buffer_size") {
		cfg.Session.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("fps") {
		cfg.FPS = raw.FPS
	}
	if meta.IsDefined("wait_attempts") {
		cfg.WaitAttempts = raw.WaitAttempts
	}
	if meta.IsDefined("wait_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WaitDelay))
		if err != nil {
			return Settings{}, fmt.Errorf("parse wait_delay: %w", err)
		}
		cfg.WaitDelay = d
	}
	for k, v := range raw.DriverOptions {
		cfg.DriverOptions[k] = v
	}
	if err := cfg.Session.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// ParseSymbol accepts a single character ("i", "\n") or a hex byte ("0x0a").
func ParseSymbol(raw string) (byte, error) {
	if len(raw) == 1 {
		return raw[0], nil
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(lower, "0x") {
		v, err := strconv.ParseUint(lower[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid symbol %q: %w", raw, err)
		}
		return byte(v), nil
	}
	switch lower {
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	case `\t`:
		return '\t', nil
	}
	return 0, fmt.Errorf("invalid symbol %q: want one character or 0xNN", raw)
}

func ParseParity(raw string) (dronelink.Parity, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "N", "NONE":
		return dronelink.NoParity, nil
	case "O", "ODD":
		return dronelink.OddParity, nil
	case "E", "EVEN":
		return dronelink.EvenParity, nil
	}
	return dronelink.NoParity, fmt.Errorf("parse parity: %q", raw)
}
