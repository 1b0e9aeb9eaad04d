package simulated

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/connection"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// TokenExpired is a connection token value the dialer always rejects, for
// exercising the invalid-token recovery path.
const TokenExpired = "expired"

var (
	fracDeclined  = decimal.RequireFromString("0.01")
	fracTransient = decimal.RequireFromString("0.02")
	fracTimeout   = decimal.RequireFromString("0.03")
)

// Dialer is a connection.SessionDialer producing simulated reader sessions.
type Dialer struct {
	// CardDelay is how long a simulated cardholder takes to present a card.
	CardDelay time.Duration
	// Update, when set, is reported by the session's update check.
	Update *model.ReaderSoftwareUpdate
}

// NewDialer returns a dialer with a short simulated cardholder delay.
func NewDialer() *Dialer {
	return &Dialer{CardDelay: 50 * time.Millisecond}
}

// DialSession validates the token and hands out a session bound to the
// reader. Empty and TokenExpired tokens are rejected with InvalidToken.
func (d *Dialer) DialSession(ctx context.Context, token string, reader *model.Reader) (connection.ReaderSession, error) {
	if reader == nil {
		return nil, errs.New(errs.InvalidArgument, "reader is required")
	}
	if token == "" || token == TokenExpired {
		return nil, errs.New(errs.InvalidToken, "connection token rejected by reader")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &session{reader: reader, dialer: d}, nil
}

type session struct {
	reader *model.Reader
	dialer *Dialer
}

// CollectPaymentMethod prompts for all entry methods, waits for the
// simulated cardholder, then asks for the card back.
func (s *session) CollectPaymentMethod(ctx context.Context, intent *model.PaymentIntent, events chan<- model.InputEvent) error {
	events <- model.InputEvent{
		Kind:    model.InputEventOptions,
		Options: model.ReaderInputOptionSwipe | model.ReaderInputOptionInsert | model.ReaderInputOptionTap,
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.dialer.CardDelay):
	}

	events <- model.InputEvent{Kind: model.InputEventPrompt, Prompt: model.ReaderInputPromptRemoveCard}
	return nil
}

// ConfirmPaymentIntent applies the package's decline rules by amount.
func (s *session) ConfirmPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	frac := intent.Amount.Sub(intent.Amount.Floor())
	switch {
	case frac.Equal(fracDeclined):
		return intent.WithStatus(model.IntentStatusRequiresPaymentMethod),
			errs.New(errs.CardDeclined, "your card was declined")
	case frac.Equal(fracTransient):
		return intent.WithStatus(model.IntentStatusRequiresConfirmation),
			errs.New(errs.SessionFailed, "the reader could not reach the payment backend")
	case frac.Equal(fracTimeout):
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return intent.WithStatus(model.IntentStatusRequiresCapture), nil
}

// ReadSource emits the usual input events and returns a static test card.
func (s *session) ReadSource(ctx context.Context, params model.ReadSourceParams, events chan<- model.InputEvent) (*model.CardPresentSource, error) {
	events <- model.InputEvent{
		Kind:    model.InputEventOptions,
		Options: model.ReaderInputOptionSwipe | model.ReaderInputOptionInsert,
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.dialer.CardDelay):
	}

	return &model.CardPresentSource{
		ID:          fmt.Sprintf("src_%s", shortID()),
		Fingerprint: shortID(),
		Brand:       "Visa",
		Last4:       "4242",
		ExpMonth:    8,
		ExpYear:     time.Now().Year() + 3,
	}, nil
}

// CheckForUpdate reports the dialer's configured update, if any.
func (s *session) CheckForUpdate(ctx context.Context) (*model.ReaderSoftwareUpdate, error) {
	return s.dialer.Update, nil
}

func (s *session) Close(ctx context.Context) error {
	return nil
}

func shortID() string {
	id := uuid.NewString()
	return id[:8] + id[9:13]
}
