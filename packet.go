package dronelink

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Packet is one framed telemetry unit: the start symbol followed by the
// payload, without the stop symbol. It is never mutated after creation.
type Packet struct {
	data []byte
	// Time is when the framer completed the packet.
	Time time.Time
}

func newPacket(b []byte) Packet {
	data := make([]byte, len(b))
	copy(data, b)
	return Packet{data: data, Time: time.Now()}
}

// Bytes returns a copy of the packet, start symbol included.
func (p Packet) Bytes() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// Payload returns a copy of the bytes following the start symbol.
func (p Packet) Payload() []byte {
	if len(p.data) < 2 {
		return nil
	}
	out := make([]byte, len(p.data)-1)
	copy(out, p.data[1:])
	return out
}

func (p Packet) Len() int {
	return len(p.data)
}

// Equal reports whether p holds exactly the bytes in b.
func (p Packet) Equal(b []byte) bool {
	return string(p.data) == string(b)
}

var (
	blue  = color.New(color.FgHiBlue).SprintfFunc()
	green = color.New(color.FgGreen).SprintfFunc()
)

// String renders "hex || ascii", colored when the terminal allows it.
func (p Packet) String() string {
	var hexView strings.Builder
	for i, b := range p.data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(p.data)-1 {
			hexView.WriteString(" ")
		}
	}
	var asciiView strings.Builder
	for _, b := range p.data {
		if b < 0x20 || b > 0x7e {
			asciiView.WriteByte('.')
			continue
		}
		asciiView.WriteByte(b)
	}
	return blue("%s", hexView.String()) + " || " + green("%s", asciiView.String())
}
