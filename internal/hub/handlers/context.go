package handlers

import "context"

// contextKey type for request context keys
type contextKey string

const (
	// DeviceIDKey key holding the authenticated device id
	DeviceIDKey contextKey = "device_id"
	// DeviceNameKey key holding the authenticated device name
	DeviceNameKey contextKey = "device_name"
)

// GetDeviceID extracts the authenticated device id from the request context.
// Every dedup decision is attributed to this explicit identity; nothing
// downstream relies on ambient session state.
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok
}

// GetDeviceName extracts the authenticated device name from the request context
func GetDeviceName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(DeviceNameKey).(string)
	return name, ok
}
