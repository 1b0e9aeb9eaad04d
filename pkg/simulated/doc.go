// Package simulated provides in-process implementations of the terminal's
// external collaborators (discovery scanner, reader session dialer, payment
// gateway) so apps can be developed and tested without physical readers or
// a backend.
//
// The simulated session applies decline rules by amount so failure paths
// can be exercised deterministically: an amount with a fractional part of
// .01 is declined (intent bounces to requires_payment_method), .02 fails
// transiently (intent stays at requires_confirmation), and .03 times out
// (outcome unknown). Any other amount confirms successfully.
package simulated
