package comport

import (
	"fmt"
	"os"
	"path/filepath"
)

// sysfsRoot is replaced in tests.
var sysfsRoot = "/sys/bus/usb-serial/devices"

// setLowLatency drops the FTDI latency timer of a ttyUSB device to 1ms so
// short packets are not held back for the default 16ms.
func setLowLatency(device string) error {
	latencyPath := filepath.Join(sysfsRoot, filepath.Base(device), "latency_timer")
	if err := os.WriteFile(latencyPath, []byte("1"), 0644); err != nil {
		return fmt.Errorf("failed to set latency timer: %w", err)
	}
	return nil
}
