package dronelink

import "sync/atomic"

// ByteSource is the consumer side of the byte buffer.
type ByteSource interface {
	TryPop() (byte, bool)
}

type FramerConfig struct {
	PacketLen   int
	StartSymbol byte
	StopSymbol  byte
}

// Framer reassembles [start][payload][stop] units from a ByteSource.
// It is not safe for concurrent use; one consumer calls Poll.
type Framer struct {
	cfg FramerConfig
	src ByteSource

	acc      []byte
	seeking  bool
	overflow bool // more than PacketLen bytes seen since the start symbol

	packets   uint64
	corrupted uint64
}

func NewFramer(cfg FramerConfig, src ByteSource) *Framer {
	return &Framer{
		cfg:     cfg,
		src:     src,
		acc:     make([]byte, 0, cfg.PacketLen),
		seeking: true,
	}
}

// Poll drains the source and returns a packet once a complete, valid unit
// has been seen. It never blocks. A unit that is cut short by an empty
// source is kept and continued on the next call.
func (f *Framer) Poll() (Packet, bool) {
	if f.seeking {
		if !f.seekStart() {
			return Packet{}, false
		}
		f.seeking = false
	}

	for {
		b, ok := f.src.TryPop()
		if !ok {
			// underrun, resume appending next time
			return Packet{}, false
		}
		if b == f.cfg.StopSymbol {
			break
		}
		f.append(b)
	}

	if !f.overflow && len(f.acc) == f.cfg.PacketLen && f.acc[0] == f.cfg.StartSymbol {
		p := newPacket(f.acc)
		f.Reset()
		atomic.AddUint64(&f.packets, 1)
		return p, true
	}

	f.Reset()
	atomic.AddUint64(&f.corrupted, 1)
	return Packet{}, false
}

// seekStart discards bytes up to and including the next start symbol,
// which becomes the first accumulated byte.
func (f *Framer) seekStart() bool {
	for {
		b, ok := f.src.TryPop()
		if !ok {
			return false
		}
		if b == f.cfg.StartSymbol {
			f.append(b)
			return true
		}
	}
}

func (f *Framer) append(b byte) {
	if len(f.acc) == f.cfg.PacketLen {
		f.overflow = true
		return
	}
	f.acc = append(f.acc, b)
}

// Reset drops any partial packet and returns to start symbol search.
func (f *Framer) Reset() {
	f.acc = f.acc[:0]
	f.seeking = true
	f.overflow = false
}

// Pending reports how many bytes of a partial packet are held.
func (f *Framer) Pending() int {
	return len(f.acc)
}

// Packets returns the number of valid packets emitted.
func (f *Framer) Packets() uint64 {
	return atomic.LoadUint64(&f.packets)
}

// Corrupted returns the number of delimited units discarded.
func (f *Framer) Corrupted() uint64 {
	return atomic.LoadUint64(&f.corrupted)
}
