// Package discovery scans for candidate readers matching a configuration
// and streams results to a host delegate until the scan terminates.
//
// A discovery runs until exactly one of:
//   - the host connects to a reader (completion fires with nil)
//   - the host cancels via the returned Cancelable
//   - the configured timeout elapses with no connection
//   - the scanner fails unrecoverably
//
// The completion fires exactly once. At most one discovery is active per
// engine; a second Discover call is rejected synchronously and no
// completion ever fires for it.
//
// The physical scan transport (BLE, network) is supplied by the host or
// environment as a Scanner implementation; package simulated provides an
// in-process one.
package discovery
