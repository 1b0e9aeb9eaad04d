package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent is a server-tracked record of an attempted payment and its
// current processing stage. Instances are immutable snapshots: lifecycle
// transitions produce new values via WithStatus, never in-place mutation.
type PaymentIntent struct {
	// ID is the backend identifier, e.g. "pi_...".
	ID string `json:"id"`
	// ClientSecret authorizes client-side operations on this intent.
	ClientSecret string `json:"client_secret"`
	// Status is the current lifecycle stage.
	Status PaymentIntentStatus `json:"status"`
	// Amount is the payment amount in major currency units.
	Amount decimal.Decimal `json:"amount"`
	// Currency is the lowercase ISO currency code, e.g. "usd".
	Currency string `json:"currency"`
	// Created is the backend creation time.
	Created time.Time `json:"created"`
	// Metadata carries opaque host-supplied key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WithStatus returns a copy of the intent with the given status. The
// receiver is left untouched so concurrent holders of the prior snapshot
// never observe a change.
func (p *PaymentIntent) WithStatus(status PaymentIntentStatus) *PaymentIntent {
	next := *p
	next.Status = status
	if p.Metadata != nil {
		next.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			next.Metadata[k] = v
		}
	}
	return &next
}

// PaymentIntentParams are the host-supplied parameters for creating a new
// payment intent. The value is immutable once passed to the SDK.
type PaymentIntentParams struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the parameters describe a chargeable amount.
func (p PaymentIntentParams) Validate() error {
	if !p.Amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

// ReadSourceParams are the host-supplied parameters for reading a payment
// method without charging it.
type ReadSourceParams struct {
	// Customer optionally attaches the resulting source to a customer.
	Customer string `json:"customer,omitempty"`
	// Metadata carries opaque host-supplied key/value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CardPresentSource is a reusable record of a card read by a reader outside
// a payment, identified for later lookup by fingerprint. Sources produced
// this way cannot be charged directly.
type CardPresentSource struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpMonth    int    `json:"exp_month"`
	ExpYear     int    `json:"exp_year"`
}
