package payment

import (
	"context"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Gateway is the external backend collaborator for intent bookkeeping that
// needs no reader: creation, retrieval, and cancellation. Confirmation goes
// through the reader session instead, because the authorization request is
// routed via the reader.
type Gateway interface {
	// CreatePaymentIntent creates a fresh intent in requires_payment_method.
	CreatePaymentIntent(ctx context.Context, params model.PaymentIntentParams) (*model.PaymentIntent, error)

	// RetrievePaymentIntent fetches the current remote state of an intent.
	// Pure read, idempotent, safe to retry.
	RetrievePaymentIntent(ctx context.Context, clientSecret string) (*model.PaymentIntent, error)

	// CancelPaymentIntent cancels an intent, returning the canceled snapshot.
	CancelPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error)
}
