package dronelink

import (
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"zero packet len", func(c *Config) { c.PacketLen = 0 }, true},
		{"same symbols", func(c *Config) { c.StopSymbol = c.StartSymbol }, true},
		{"buffer too small", func(c *Config) { c.BufferSize = c.PacketLen }, true},
		{"no baudrate", func(c *Config) { c.Mode.BaudRate = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLinkMode_String(t *testing.T) {
	if got := DefaultLinkMode().String(); got != "9600 8N1" {
		t.Fatalf("String() = %q", got)
	}
}

func TestSortLinkIDs(t *testing.T) {
	ids := []LinkID{
		{Name: "COM10"}, {Name: "COM2"}, {Name: "COM1"}, {Name: "/dev/ttyUSB1"}, {Name: "/dev/ttyUSB0"},
	}
	SortLinkIDs(ids)
	want := []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "COM1", "COM2", "COM10"}
	for i, id := range ids {
		if id.Name != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}

	byIndex := []LinkID{{Name: "b", Index: 2}, {Name: "a", Index: 3}, {Name: "c", Index: 1}}
	SortLinkIDs(byIndex)
	if byIndex[0].Name != "c" || byIndex[1].Name != "b" || byIndex[2].Name != "a" {
		t.Fatalf("index order = %v", byIndex)
	}
}

func TestUnrecoverable(t *testing.T) {
	base := errors.New("read failed")
	err := Unrecoverable(base)
	if IsRecoverable(err) {
		t.Fatal("IsRecoverable(Unrecoverable(err)) = true")
	}
	if !errors.Is(err, base) {
		t.Fatal("Unrecoverable does not unwrap")
	}
	if !IsRecoverable(base) {
		t.Fatal("IsRecoverable(plain) = false")
	}
}
