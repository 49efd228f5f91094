//go:build !linux

package comport

func setLowLatency(device string) error {
	return nil
}
