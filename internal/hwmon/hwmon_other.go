//go:build !linux

package hwmon

import "context"

type stubScanner struct{}

func newScanner() Scanner {
	return stubScanner{}
}

func (stubScanner) Scan(context.Context) ([]Device, error) {
	return nil, ErrUnsupportedPlatform
}

func newNotifier(HotplugSource) (Notifier, error) {
	return nil, ErrUnsupportedPlatform
}
