package utils

import "github.com/notargets/vecstream/device"

// CreateTestDevice creates a device for testing with the default capacities.
func CreateTestDevice() *device.Device {
	return device.New(device.Config{})
}

// CreateSmallTestDevice creates a deliberately tiny device, useful for
// exercising allocation and pinning exhaustion paths.
func CreateSmallTestDevice(memBytes, pinnedBytes int64) *device.Device {
	return device.New(device.Config{
		MemBytes:       memBytes,
		MaxPinnedBytes: pinnedBytes,
	})
}
