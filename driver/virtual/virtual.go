// Package virtual is an in-memory link driver for tests and demos.
//
// Ports are created with AddPort. Bytes handed to Port.Feed come out of the
// Read calls of whichever link currently has the port open. A port can also
// run a generator that emits well formed packets while it is open.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/roffe/dronelink"
)

const Name = "virtual"

var ErrClosed = errors.New("virtual link closed")

func init() {
	if err := dronelink.RegisterDriver(&dronelink.DriverInfo{
		Name:        Name,
		Description: "In-memory link emitting synthetic telemetry",
		New:         newFromConfig,
	}); err != nil {
		panic(err)
	}
}

// newFromConfig builds a driver with a single generating port, "virtual0".
// AdditionalConfig keys: interval (duration), packet_len, start, stop, noise.
func newFromConfig(cfg *dronelink.DriverConfig) (dronelink.Driver, error) {
	gen := DefaultGenerator()
	if v, ok := cfg.AdditionalConfig["interval"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("virtual: parse interval: %w", err)
		}
		gen.Interval = d
	}
	if v, ok := cfg.AdditionalConfig["packet_len"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("virtual: parse packet_len: %w", err)
		}
		gen.PacketLen = n
	}
	if v, ok := cfg.AdditionalConfig["start"]; ok && len(v) == 1 {
		gen.StartSymbol = v[0]
	}
	if v, ok := cfg.AdditionalConfig["stop"]; ok && len(v) == 1 {
		gen.StopSymbol = v[0]
	}
	if v, ok := cfg.AdditionalConfig["noise"]; ok {
		gen.Noise = v == "true" || v == "1"
	}
	d := New()
	d.AddPort("virtual0").SetGenerator(&gen)
	return d, nil
}

type Driver struct {
	mu           sync.Mutex
	ports        []*Port
	enumerateErr error
}

func New() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return Name
}

// AddPort creates a port. Ports enumerate in the order they were added.
func (d *Driver) AddPort(name string) *Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &Port{
		name:      name,
		index:     len(d.ports),
		available: true,
		data:      make(chan []byte, 1024),
		readErr:   make(chan error, 1),
	}
	d.ports = append(d.ports, p)
	return p
}

// SetEnumerateError makes Enumerate fail with err until cleared with nil.
func (d *Driver) SetEnumerateError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerateErr = err
}

func (d *Driver) Enumerate(ctx context.Context) ([]dronelink.LinkID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enumerateErr != nil {
		return nil, d.enumerateErr
	}
	var out []dronelink.LinkID
	for _, p := range d.ports {
		if err := p.probe(); err != nil {
			continue
		}
		out = append(out, p.id())
	}
	return out, nil
}

func (d *Driver) Open(id dronelink.LinkID) (dronelink.Link, error) {
	d.mu.Lock()
	var port *Port
	for _, p := range d.ports {
		if p.name == id.Name {
			port = p
			break
		}
	}
	d.mu.Unlock()
	if port == nil {
		return nil, fmt.Errorf("virtual: no such port %q", id.Name)
	}
	return port.open()
}

type Port struct {
	name  string
	index int

	mu           sync.Mutex
	available    bool
	openErr      error
	configureErr error
	opened       bool
	gen          *Generator

	data    chan []byte
	readErr chan error
}

func (p *Port) id() dronelink.LinkID {
	return dronelink.LinkID{Name: p.name, Index: p.index}
}

func (p *Port) Name() string {
	return p.name
}

// SetAvailable hides the port from Enumerate and makes Open fail when false.
func (p *Port) SetAvailable(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = v
}

func (p *Port) SetOpenError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

func (p *Port) SetConfigureError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configureErr = err
}

func (p *Port) SetGenerator(g *Generator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen = g
}

// Feed queues b for the link reading this port. It never blocks; when the
// queue is full the chunk is dropped like bytes on a saturated wire.
func (p *Port) Feed(b []byte) bool {
	chunk := make([]byte, len(b))
	copy(chunk, b)
	select {
	case p.data <- chunk:
		return true
	default:
		return false
	}
}

// FailRead makes the next Read of the open link return err.
func (p *Port) FailRead(err error) {
	select {
	case p.readErr <- err:
	default:
	}
}

// Opened reports whether a link currently holds the port.
func (p *Port) Opened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *Port) probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkOpenLocked()
}

func (p *Port) checkOpenLocked() error {
	if !p.available {
		return fmt.Errorf("virtual: port %q not available", p.name)
	}
	if p.opened {
		return fmt.Errorf("virtual: port %q busy", p.name)
	}
	return p.openErr
}

func (p *Port) open() (*Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpenLocked(); err != nil {
		return nil, err
	}
	p.opened = true
	l := &Link{
		port:        p,
		readTimeout: dronelink.DefaultReadTimeout,
		closed:      make(chan struct{}),
	}
	if p.gen != nil {
		go p.gen.run(p, l.closed)
	}
	return l, nil
}

// Link is an open virtual port.
type Link struct {
	port        *Port
	pending     []byte
	readTimeout time.Duration
	mode        dronelink.LinkMode

	closeOnce sync.Once
	closed    chan struct{}
}

func (l *Link) Configure(mode dronelink.LinkMode) error {
	l.port.mu.Lock()
	err := l.port.configureErr
	l.port.mu.Unlock()
	if err != nil {
		return err
	}
	l.mode = mode
	if mode.ReadTimeout > 0 {
		l.readTimeout = mode.ReadTimeout
	}
	return nil
}

// Mode returns the line settings last applied by Configure.
func (l *Link) Mode() dronelink.LinkMode {
	return l.mode
}

func (l *Link) Read(b []byte) (int, error) {
	if len(l.pending) > 0 {
		n := copy(b, l.pending)
		l.pending = l.pending[n:]
		return n, nil
	}
	timer := time.NewTimer(l.readTimeout)
	defer timer.Stop()
	select {
	case <-l.closed:
		return 0, io.EOF
	case err := <-l.port.readErr:
		return 0, err
	case chunk := <-l.port.data:
		n := copy(b, chunk)
		l.pending = chunk[n:]
		return n, nil
	case <-timer.C:
		return 0, nil
	}
}

func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.port.mu.Lock()
		l.port.opened = false
		l.port.mu.Unlock()
	})
	return nil
}
