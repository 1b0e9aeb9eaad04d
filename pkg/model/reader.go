package model

// Reader describes a discovered payment reader. Readers are produced by the
// discovery engine and must be treated as immutable once emitted; the
// connection manager references (never copies or mutates) the reader it is
// connected to.
type Reader struct {
	// SerialNumber uniquely identifies the device.
	SerialNumber string `json:"serial_number"`
	// DeviceType is the hardware model.
	DeviceType DeviceType `json:"device_type"`
	// DeviceSoftwareVersion is the firmware/config version currently
	// installed on the reader.
	DeviceSoftwareVersion string `json:"device_software_version"`
	// BatteryLevel is the charge fraction in [0, 1].
	BatteryLevel float64 `json:"battery_level"`
	// SignalStrength is the transport signal quality in [0, 1].
	SignalStrength float64 `json:"signal_strength"`
}

// ReaderSoftwareUpdate describes an available reader firmware update. The
// update transport itself is outside this SDK; hosts are only notified that
// one exists.
type ReaderSoftwareUpdate struct {
	// Version is the update's target software version.
	Version string `json:"version"`
	// EstimatedTime is a human-readable install estimate, e.g. "1-2 minutes".
	EstimatedTime string `json:"estimated_time"`
}
