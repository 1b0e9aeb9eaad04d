// Package payment implements the payment-intent state machine: creating,
// retrieving, collecting a payment method for, confirming, and canceling
// payment intents, plus reading card-present sources without charging.
//
// Intent statuses move strictly
//
//	requires_payment_method -> requires_confirmation -> requires_capture
//
// with canceled reachable from the first two stages. Every transition
// produces a new immutable snapshot; a failed transition leaves the prior
// snapshot intact.
//
// Confirm has the one subtle contract: on failure the returned error
// carries the best-known updated snapshot. A snapshot back at
// requires_payment_method means the card was declined: collect again. A
// snapshot still at requires_confirmation means a transient failure:
// confirm the same intent again. No snapshot means the request timed out
// and the true status is unknown: retrieve the intent or retry the confirm,
// but never create a replacement intent and capture both.
//
// The machine enforces the reader's one-operation-at-a-time constraint with
// an explicit busy flag and performs zero automatic retries; every retry is
// a host-initiated re-call.
package payment
