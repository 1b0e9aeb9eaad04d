// Package model defines the data structures exchanged between the terminal
// SDK, the host application, and the external reader/backend collaborators.
//
// This package contains the core data models that represent:
//   - Discovered readers (device descriptors with battery/signal metadata)
//   - Payment intents and their lifecycle status
//   - Card-present sources read without charging
//   - Reader software updates
//   - Status enums (connection, payment, intent, device type, reader input)
//
// Every struct emitted across the SDK boundary is treated as an immutable
// snapshot: readers never change after discovery emits them, and payment
// intents are never mutated in place; each lifecycle transition produces a
// fresh copy via PaymentIntent.WithStatus, so a host holding an earlier
// snapshot is never surprised.
//
// The status enums implement fmt.Stringer with fixed, unlocalized display
// strings (for example ReaderInputPrompt -> "Retry Card") suitable for
// directly rendering reader state in a point-of-sale UI.
package model
