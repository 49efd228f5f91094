package dronelink

import (
	"testing"

	"github.com/roffe/dronelink/pkg/ringbuf"
)

func newTestFramer() (*Framer, *ringbuf.Buffer) {
	buf := ringbuf.New(256)
	return NewFramer(DefaultConfig().framerConfig(), buf), buf
}

// pollAll polls until the source is drained and returns every packet seen.
func pollAll(f *Framer, buf *ringbuf.Buffer) []string {
	var out []string
	for i := 0; i < 1000; i++ {
		p, ok := f.Poll()
		if ok {
			out = append(out, string(p.Bytes()))
			continue
		}
		if buf.Len() == 0 {
			break
		}
	}
	return out
}

func TestFramer_Poll(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		want      []string
		corrupted uint64
	}{
		{"leading noise", "xxiABCDEFGHI\n", []string{"iABCDEFGHI"}, 0},
		{"short unit then valid", "iAB\niCDEFGHIJK\n", []string{"iCDEFGHIJK"}, 1},
		{"nine bytes", "iCDEFGHIJ\n", nil, 1},
		{"two back to back", "iABCDEFGHI\niJKLMNOPQR\n", []string{"iABCDEFGHI", "iJKLMNOPQR"}, 0},
		{"too long", "iABCDEFGHIJK\niABCDEFGHI\n", []string{"iABCDEFGHI"}, 1},
		{"start symbol inside payload", "iiiiiiiiii\n", []string{"iiiiiiiiii"}, 0},
		{"stop before any start", "\n\n\nabc", nil, 0},
		{"empty", "", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, buf := newTestFramer()
			buf.Write([]byte(tt.in))
			got := pollAll(f, buf)
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("packet %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if f.Corrupted() != tt.corrupted {
				t.Errorf("Corrupted() = %d, want %d", f.Corrupted(), tt.corrupted)
			}
		})
	}
}

func TestFramer_WorkedExamples(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("xxiABCDEFGHI\n"))
	p, ok := f.Poll()
	if !ok {
		t.Fatal("Poll() returned no packet")
	}
	if string(p.Bytes()) != "iABCDEFGHI" || p.Len() != 10 || p.Bytes()[0] != 'i' {
		t.Fatalf("Poll() = %q", p.Bytes())
	}

	buf.Write([]byte("iAB\niCDEFGHIJK\n"))
	if _, ok := f.Poll(); ok {
		t.Fatal("first unit is corrupted and must not be emitted")
	}
	p, ok = f.Poll()
	if !ok || string(p.Bytes()) != "iCDEFGHIJK" {
		t.Fatalf("second unit: ok=%v packet=%q", ok, p.Bytes())
	}
}

func TestFramer_SplitAcrossPolls(t *testing.T) {
	const stream = "zziABCDEFGHI\n"
	for split := 1; split <= len(stream); split++ {
		f, buf := newTestFramer()
		var got []string
		for off := 0; off < len(stream); off += split {
			end := off + split
			if end > len(stream) {
				end = len(stream)
			}
			buf.Write([]byte(stream[off:end]))
			if p, ok := f.Poll(); ok {
				got = append(got, string(p.Bytes()))
			}
		}
		if len(got) != 1 || got[0] != "iABCDEFGHI" {
			t.Errorf("chunk size %d: got %q", split, got)
		}
	}
}

func TestFramer_UnderrunKeepsPartial(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("iABC"))
	if _, ok := f.Poll(); ok {
		t.Fatal("partial packet emitted")
	}
	if f.Pending() != 4 {
		t.Fatalf("Pending() = %d, want 4", f.Pending())
	}
	// A start symbol arriving mid packet is payload, not a resync point.
	buf.Write([]byte("iEFGHI\n"))
	p, ok := f.Poll()
	if !ok || string(p.Bytes()) != "iABCiEFGHI" {
		t.Fatalf("Poll() = %q, %v", p.Bytes(), ok)
	}
	if f.Pending() != 0 {
		t.Fatalf("Pending() after emit = %d", f.Pending())
	}
}

func TestFramer_OverflowIsBounded(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("i"))
	for i := 0; i < 10; i++ {
		buf.Write([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
		f.Poll()
		if f.Pending() > DefaultPacketLen {
			t.Fatalf("accumulator grew to %d", f.Pending())
		}
	}
	buf.Write([]byte("\niABCDEFGHI\n"))
	if _, ok := f.Poll(); ok {
		t.Fatal("overlong unit emitted")
	}
	p, ok := f.Poll()
	if !ok || string(p.Bytes()) != "iABCDEFGHI" {
		t.Fatalf("resync failed: %q, %v", p.Bytes(), ok)
	}
}

func TestFramer_ResyncAfterCorruption(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("iAB\nxyz"))
	if _, ok := f.Poll(); ok {
		t.Fatal("corrupted unit emitted")
	}
	// noise left in the buffer is skipped while seeking
	buf.Write([]byte("iABCDEFGHI\n"))
	p, ok := f.Poll()
	if !ok || string(p.Bytes()) != "iABCDEFGHI" {
		t.Fatalf("Poll() = %q, %v", p.Bytes(), ok)
	}
}

func TestFramer_Reset(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("iABCDE"))
	f.Poll()
	f.Reset()
	buf.Write([]byte("FGHI\niABCDEFGHI\n"))
	p, ok := f.Poll()
	if !ok || string(p.Bytes()) != "iABCDEFGHI" {
		t.Fatalf("Poll() after Reset = %q, %v", p.Bytes(), ok)
	}
}

func TestPacket_Immutable(t *testing.T) {
	f, buf := newTestFramer()
	buf.Write([]byte("iABCDEFGHI\n"))
	p, ok := f.Poll()
	if !ok {
		t.Fatal("no packet")
	}
	b := p.Bytes()
	b[1] = 'Z'
	if !p.Equal([]byte("iABCDEFGHI")) {
		t.Fatalf("packet changed through Bytes(): %q", p.Bytes())
	}
	if string(p.Payload()) != "ABCDEFGHI" {
		t.Fatalf("Payload() = %q", p.Payload())
	}
	if p.Time.IsZero() {
		t.Fatal("packet has no timestamp")
	}
}
