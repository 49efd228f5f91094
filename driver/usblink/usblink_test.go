package usblink

import (
	"testing"

	"github.com/google/gousb"
)

func TestLinkName(t *testing.T) {
	name := linkName(1, 4)
	if name != "usb:001:004" {
		t.Fatalf("linkName(1, 4) = %q", name)
	}
	bus, address, err := parseLinkName(name)
	if err != nil {
		t.Fatalf("parseLinkName(%q) error = %v", name, err)
	}
	if bus != 1 || address != 4 {
		t.Fatalf("parseLinkName(%q) = %d, %d", name, bus, address)
	}
	if _, _, err := parseLinkName("COM3"); err == nil {
		t.Fatal("parseLinkName(COM3) error = nil")
	}
}

func TestLinkIndexOrdersByBusThenAddress(t *testing.T) {
	if !(linkIndex(1, 200) < linkIndex(2, 1)) {
		t.Fatal("bus 1 must sort before bus 2")
	}
	if !(linkIndex(3, 1) < linkIndex(3, 2)) {
		t.Fatal("address 1 must sort before address 2 on the same bus")
	}
}

func TestPickInEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		endpoints map[gousb.EndpointAddress]gousb.EndpointDesc
		want      int
		found     bool
	}{
		{
			name: "bulk in",
			endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
				0x01: {Address: 0x01, Number: 1, Direction: gousb.EndpointDirectionOut, TransferType: gousb.TransferTypeBulk},
				0x82: {Address: 0x82, Number: 2, Direction: gousb.EndpointDirectionIn, TransferType: gousb.TransferTypeBulk},
			},
			want:  2,
			found: true,
		},
		{
			name: "lowest of several",
			endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
				0x83: {Address: 0x83, Number: 3, Direction: gousb.EndpointDirectionIn, TransferType: gousb.TransferTypeInterrupt},
				0x81: {Address: 0x81, Number: 1, Direction: gousb.EndpointDirectionIn, TransferType: gousb.TransferTypeBulk},
			},
			want:  1,
			found: true,
		},
		{
			name: "isochronous only",
			endpoints: map[gousb.EndpointAddress]gousb.EndpointDesc{
				0x81: {Address: 0x81, Number: 1, Direction: gousb.EndpointDirectionIn, TransferType: gousb.TransferTypeIsochronous},
			},
			found: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, ok := pickInEndpoint(gousb.InterfaceSetting{Endpoints: tt.endpoints})
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && ep.Number != tt.want {
				t.Fatalf("endpoint = %d, want %d", ep.Number, tt.want)
			}
		})
	}
}
