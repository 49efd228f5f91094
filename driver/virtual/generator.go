package virtual

import (
	"math/rand"
	"time"

	"github.com/roffe/dronelink"
)

// Generator emits packets shaped like the drone's telemetry: the start
// symbol, PacketLen-1 printable payload bytes and the stop symbol.
type Generator struct {
	Interval    time.Duration
	PacketLen   int
	StartSymbol byte
	StopSymbol  byte
	// Noise inserts junk between packets and truncates one packet in ten.
	Noise bool
}

func DefaultGenerator() Generator {
	return Generator{
		Interval:    20 * time.Millisecond,
		PacketLen:   dronelink.DefaultPacketLen,
		StartSymbol: dronelink.DefaultStartSymbol,
		StopSymbol:  dronelink.DefaultStopSymbol,
	}
}

// Packet returns the n-th generated packet including its stop symbol.
func (g *Generator) Packet(n int) []byte {
	out := make([]byte, 0, g.PacketLen+1)
	out = append(out, g.StartSymbol)
	for i := 1; i < g.PacketLen; i++ {
		b := byte('A' + (n+i)%26)
		if b == g.StartSymbol || b == g.StopSymbol {
			b = '0'
		}
		out = append(out, b)
	}
	return append(out, g.StopSymbol)
}

func (g *Generator) run(p *Port, closed <-chan struct{}) {
	interval := g.Interval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for n := 0; ; n++ {
		select {
		case <-closed:
			return
		case <-t.C:
		}
		pkt := g.Packet(n)
		if g.Noise {
			if rnd.Intn(10) == 0 {
				pkt = append(pkt[:rnd.Intn(len(pkt)-1)+1], g.StopSymbol)
			}
			p.Feed([]byte{'x', byte(rnd.Intn(26) + 'a')})
		}
		p.Feed(pkt)
	}
}
