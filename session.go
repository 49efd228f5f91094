// Package dronelink reads fixed length, delimited telemetry packets from a
// serial or USB link without ever blocking the consumer.
//
// A Session owns the link, a lossy byte buffer and a Framer. The receiver
// goroutine started by Session.Start fills the buffer, the consumer calls
// Session.Poll once per rendered frame.
package dronelink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/roffe/dronelink/pkg/ringbuf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Session struct {
	cfg    Config
	driver Driver
	log    *zerolog.Logger

	mu      sync.Mutex
	state   RunState
	link    Link
	linkID  LinkID
	rx      *receiver
	lastErr error

	buf    *ringbuf.Buffer
	framer *Framer

	recvBytes  uint64
	readErrors uint64

	evtChan chan Event
}

func defaultLogger() *zerolog.Logger {
	return &log.Logger
}

func New(cfg Config, driver Driver) (*Session, error) {
	if driver == nil {
		return nil, ErrNilDriver
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	l := cfg.Logger.With().Str("driver", driver.Name()).Logger()
	buf := ringbuf.New(cfg.BufferSize)
	return &Session{
		cfg:     cfg,
		driver:  driver,
		log:     &l,
		buf:     buf,
		framer:  NewFramer(cfg.framerConfig(), buf),
		evtChan: make(chan Event, 100),
	}, nil
}

func (s *Session) Config() Config {
	return s.cfg
}

func (s *Session) Driver() Driver {
	return s.driver
}

// FindPorts lists the links the driver could probe-open, in ascending order.
// Enumeration is best effort: a failing platform API yields an empty list.
func (s *Session) FindPorts(ctx context.Context) []LinkID {
	ids, err := s.driver.Enumerate(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("port enumeration failed")
		return []LinkID{}
	}
	if ids == nil {
		ids = []LinkID{}
	}
	SortLinkIDs(ids)
	for _, id := range ids {
		s.log.Debug().Str("port", id.String()).Msg("port available")
	}
	return ids
}

func (s *Session) Connect(id LinkID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(id)
}

func (s *Session) connectLocked(id LinkID) error {
	if s.state != Disconnected {
		s.log.Warn().Str("port", s.linkID.Name).Msg("port is already connected")
		return ErrAlreadyConnected
	}
	link, err := s.driver.Open(id)
	if err != nil {
		s.log.Error().Err(err).Str("port", id.Name).Msg("failed to open port")
		return fmt.Errorf("failed to open %q: %w", id.Name, err)
	}
	s.link = link
	s.linkID = id
	s.state = Connected
	s.log.Info().Str("port", id.Name).Msg("successfully opened port")
	s.sendEvent(EventTypeInfo, "connected to "+id.Name)
	return nil
}

// AutoConnect connects to the first candidate, in ascending order, that opens.
func (s *Session) AutoConnect(ctx context.Context) error {
	if s.State() != Disconnected {
		s.log.Warn().Msg("port is already connected")
		return ErrAlreadyConnected
	}
	for _, id := range s.FindPorts(ctx) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Debug().Str("port", id.Name).Msg("attempting to open port")
		s.sendEvent(EventTypeDebug, "attempting to open "+id.Name)
		err := s.Connect(id)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAlreadyConnected) {
			return err
		}
	}
	s.log.Warn().Msg("could not find an available port")
	return ErrNoPortAvailable
}

// AutoConnectRetry repeats AutoConnect until a port opens, attempts run out
// or ctx is done.
func (s *Session) AutoConnectRetry(ctx context.Context, attempts uint, delay time.Duration) error {
	if s.State() != Disconnected {
		return ErrAlreadyConnected
	}
	return retry.Do(func() error {
		err := s.AutoConnect(ctx)
		if errors.Is(err, ErrAlreadyConnected) {
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			s.log.Info().Uint("attempt", n+1).Err(err).Msg("waiting for port")
		}),
		retry.LastErrorOnly(true),
	)
}

// Init applies the configured line settings to the connected link.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Disconnected:
		s.log.Warn().Msg("cannot initialize port without a connection")
		return ErrNotConnected
	case Connected:
	default:
		s.log.Warn().Str("state", s.state.String()).Msg("port has already been initialized")
		return ErrAlreadyInitialized
	}
	if err := s.link.Configure(s.cfg.Mode); err != nil {
		s.log.Error().Err(err).Str("port", s.linkID.Name).Msg("failed to configure port")
		return fmt.Errorf("failed to configure %q: %w", s.linkID.Name, err)
	}
	s.state = Initialized
	s.log.Debug().Str("port", s.linkID.Name).Str("mode", s.cfg.Mode.String()).Msg("port initialized")
	return nil
}

func (s *Session) canStartLocked() error {
	switch s.state {
	case Running:
		return ErrAlreadyRunning
	case Disconnected:
		return ErrNotConnected
	case Connected:
		return ErrNotInitialized
	}
	return nil
}

// Start clears the buffer and spawns the receiver. A receiver left over
// from a previous Stop is joined first so it can never write into the
// fresh buffer.
func (s *Session) Start() error {
	s.mu.Lock()
	for {
		if err := s.canStartLocked(); err != nil {
			s.mu.Unlock()
			s.log.Warn().Err(err).Msg("cannot start port")
			return err
		}
		prev := s.rx
		if prev == nil || !prev.alive() {
			break
		}
		s.mu.Unlock()
		<-prev.done
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	s.state = Running
	s.buf.Reset()
	s.framer.Reset()
	s.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	s.rx = &receiver{
		s:      s,
		link:   s.link,
		buf:    s.buf,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.rx.run(ctx)
	s.log.Info().Str("port", s.linkID.Name).Msg("started reading")
	s.sendEvent(EventTypeInfo, "started reading "+s.linkID.Name)
	return nil
}

// Stop asks the receiver to exit and returns without waiting for it.
// It reports false if the session was not running.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		s.log.Debug().Str("state", s.state.String()).Msg("port not running")
		return false
	}
	s.state = Stopped
	s.rx.cancel()
	s.log.Info().Str("port", s.linkID.Name).Msg("stopped reading")
	s.sendEvent(EventTypeInfo, "stopped reading "+s.linkID.Name)
	return true
}

// Disconnect closes the link from any state and waits for the receiver.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return nil
	}
	rx, link, name := s.rx, s.link, s.linkID.Name
	s.state = Disconnected
	s.rx = nil
	s.link = nil
	s.linkID = LinkID{}
	if rx != nil {
		rx.cancel()
	}
	s.mu.Unlock()

	var err error
	if link != nil {
		if cerr := link.Close(); cerr != nil {
			err = fmt.Errorf("failed to close %q: %w", name, cerr)
		}
	}
	if rx != nil {
		<-rx.done
	}
	s.buf.Reset()
	s.framer.Reset()
	s.log.Info().Str("port", name).Msg("disconnected")
	s.sendEvent(EventTypeInfo, "disconnected from "+name)
	return err
}

func (s *Session) Close() error {
	return s.Disconnect()
}

// Poll returns the next complete packet, if one has arrived. It never blocks.
func (s *Session) Poll() (Packet, bool) {
	return s.framer.Poll()
}

// LatestPacket is Poll under the name the render layer knows it by.
func (s *Session) LatestPacket() (Packet, bool) {
	return s.Poll()
}

func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.hasLink()
}

// IsReading reports whether a receiver is running and still alive. It turns
// false on its own when the receiver dies on a read error.
func (s *Session) IsReading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Running && s.rx != nil && s.rx.alive()
}

func (s *Session) PortName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkID.Name
}

func (s *Session) Port() LinkID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linkID
}

// Err returns the error that ended the last receiver, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Event() <-chan Event {
	return s.evtChan
}

// Buffered reports how many unread bytes sit in the buffer.
func (s *Session) Buffered() int {
	return s.buf.Len()
}

func (s *Session) Stats() Stats {
	return Stats{
		RecvBytes:    atomic.LoadUint64(&s.recvBytes),
		DroppedBytes: s.buf.Dropped(),
		Packets:      s.framer.Packets(),
		Corrupted:    s.framer.Corrupted(),
		ReadErrors:   atomic.LoadUint64(&s.readErrors),
	}
}

func (s *Session) isCurrent(rx *receiver) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Running && s.rx == rx
}

// fatal records a receiver error, meaning the link is broken and reading
// has ended.
func (s *Session) fatal(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	atomic.AddUint64(&s.readErrors, 1)
	s.log.Error().Err(err).Msg("port no longer reading")
	s.sendEvent(EventTypeError, err.Error())
}

func (s *Session) sendEvent(eventType EventType, details string) {
	select {
	case s.evtChan <- Event{Type: eventType, Details: details}:
	default:
		s.log.Warn().Str("event", details).Msg("event channel full")
	}
}
