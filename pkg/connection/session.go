package connection

import (
	"context"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// SessionDialer is the external reader transport collaborator. It exchanges
// a connection token and a reader descriptor for a live session. A rejected
// token must be reported with an errs.InvalidToken error so the manager can
// clear the token cache.
type SessionDialer interface {
	DialSession(ctx context.Context, token string, reader *model.Reader) (ReaderSession, error)
}

// ReaderSession is an established session with one physical reader. The
// reader handles exactly one logical operation at a time; serialization is
// enforced by the payment machine, not by implementations.
//
// Methods that take an events channel may send input events only until they
// return; the caller closes the channel afterwards.
type ReaderSession interface {
	// CollectPaymentMethod drives the reader-side card read for the intent,
	// streaming input events (accepted entry methods, cardholder prompts)
	// into events. It returns nil once a payment method is attached, or
	// ctx.Err() when the read is canceled.
	CollectPaymentMethod(ctx context.Context, intent *model.PaymentIntent, events chan<- model.InputEvent) error

	// ConfirmPaymentIntent submits the payment for authorization. On failure
	// the returned intent, when non-nil, is the authoritative updated
	// snapshot (e.g. bounced back to requires_payment_method on a decline).
	ConfirmPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error)

	// ReadSource reads a payment method without charging it.
	ReadSource(ctx context.Context, params model.ReadSourceParams, events chan<- model.InputEvent) (*model.CardPresentSource, error)

	// CheckForUpdate reports an available reader software update, or
	// (nil, nil) when the reader is up to date.
	CheckForUpdate(ctx context.Context) (*model.ReaderSoftwareUpdate, error)

	// Close tears the session down.
	Close(ctx context.Context) error
}
