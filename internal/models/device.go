// ABOUTME: Device identity and rotation settings models
// ABOUTME: Defines the identifier a client presents to the media server

package models

import "time"

// DefaultDeviceType is reported to the server when no explicit type is set.
const DefaultDeviceType = "desktop"

// DeviceIdentity is the self-generated identity this client presents to the
// server. The ID is immutable outside the rotation protocol, which replaces
// it together with the rotation timestamp.
type DeviceIdentity struct {
	ID   string `json:"device_id"`
	Name string `json:"device_name"`
	Type string `json:"device_type"`
}

// RotationSettings controls the periodic replacement of the device ID.
// IntervalDays is clamped to [0, 365]; zero disables time-based rotation.
type RotationSettings struct {
	IntervalDays int       `json:"rotation_interval_days"`
	LastRotation time.Time `json:"last_rotation"`
	AutoRotation bool      `json:"auto_rotation"`
}

// MinRotationIntervalDays and MaxRotationIntervalDays bound the rotation
// interval. Values outside the range are clamped, not rejected.
const (
	MinRotationIntervalDays = 0
	MaxRotationIntervalDays = 365
)

// ClampRotationInterval forces days into the allowed interval range.
func ClampRotationInterval(days int) int {
	if days < MinRotationIntervalDays {
		return MinRotationIntervalDays
	}
	if days > MaxRotationIntervalDays {
		return MaxRotationIntervalDays
	}
	return days
}
