// Package config defines the runtime configuration for the terminal SDK:
// debug mode, per-operation timeouts, and the per-call discovery
// configuration. It also provides validation, defaulting, and environment
// loading helpers.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Config holds the settings required to construct a Terminal.
// Use Validate to check for invalid fields and Timeouts.WithDefaults to fill
// implicit defaults.
type Config struct {
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug"`
	// Timeouts configures per-operation deadlines. See Timeouts.WithDefaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts"`
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults, except
// Collect, which stays unbounded by default because it waits on the
// cardholder.
type Timeouts struct {
	TokenFetch time.Duration // host token-provider fetch
	Connect    time.Duration // reader session dial
	Request    time.Duration // backend gateway requests (create/retrieve/cancel)
	Confirm    time.Duration // payment confirmation round trip
	Collect    time.Duration // reader-side card read (0 = wait for cancel)
}

// Validate verifies the configuration. Timeouts must not be negative.
func (c *Config) Validate() error {
	return c.Timeouts.validate()
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	TokenFetch: 15s
//	Connect:    30s
//	Request:    15s
//	Confirm:    30s
//	Collect:    0 (unbounded)
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.TokenFetch == 0 {
		tt.TokenFetch = 15 * time.Second
	}
	if tt.Connect == 0 {
		tt.Connect = 30 * time.Second
	}
	if tt.Request == 0 {
		tt.Request = 15 * time.Second
	}
	if tt.Confirm == 0 {
		tt.Confirm = 30 * time.Second
	}
	return tt
}

func (t Timeouts) validate() error {
	for _, d := range []time.Duration{t.TokenFetch, t.Connect, t.Request, t.Confirm, t.Collect} {
		if d < 0 {
			return errors.New("timeouts must not be negative")
		}
	}
	return nil
}

// DiscoveryConfiguration selects which readers a discovery scan looks for
// and how long it runs. The value is immutable once passed to the SDK.
type DiscoveryConfiguration struct {
	// DeviceType restricts the scan to one hardware model.
	DeviceType model.DeviceType `json:"device_type"`
	// Timeout ends the scan with a timeout error if no reader has been
	// connected by then. Zero means no timeout; set one, or make the scan
	// cancelable in your UI.
	Timeout time.Duration `json:"timeout"`
	// Simulated requests the in-process simulated reader fleet.
	Simulated bool `json:"simulated"`
}

// Validate verifies the discovery configuration.
func (d DiscoveryConfiguration) Validate() error {
	if d.Timeout < 0 {
		return fmt.Errorf("discovery timeout must not be negative: %v", d.Timeout)
	}
	return nil
}
