package simulated

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Gateway is an in-memory payment.Gateway keeping intents by client secret.
type Gateway struct {
	mu      sync.Mutex
	intents map[string]*model.PaymentIntent
}

// NewGateway returns an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{intents: make(map[string]*model.PaymentIntent)}
}

// CreatePaymentIntent stores and returns a fresh intent in
// requires_payment_method.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, params model.PaymentIntentParams) (*model.PaymentIntent, error) {
	if err := params.Validate(); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "invalid payment intent parameters", err)
	}

	id := fmt.Sprintf("pi_%s", strings.ReplaceAll(uuid.NewString(), "-", ""))
	intent := &model.PaymentIntent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, shortID()),
		Status:       model.IntentStatusRequiresPaymentMethod,
		Amount:       params.Amount,
		Currency:     params.Currency,
		Created:      time.Now(),
		Metadata:     params.Metadata,
	}

	g.mu.Lock()
	g.intents[intent.ClientSecret] = intent
	g.mu.Unlock()
	return intent, nil
}

// RetrievePaymentIntent returns the stored snapshot for the client secret.
func (g *Gateway) RetrievePaymentIntent(ctx context.Context, clientSecret string) (*model.PaymentIntent, error) {
	g.mu.Lock()
	intent, ok := g.intents[clientSecret]
	g.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "no payment intent for that client secret")
	}
	return intent, nil
}

// CancelPaymentIntent cancels an intent that has not been authorized yet.
func (g *Gateway) CancelPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	if intent == nil {
		return nil, errs.New(errs.InvalidArgument, "intent is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	stored, ok := g.intents[intent.ClientSecret]
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "no payment intent for that client secret")
	}
	switch stored.Status {
	case model.IntentStatusRequiresPaymentMethod, model.IntentStatusRequiresConfirmation:
	default:
		return nil, errs.Newf(errs.IntentInvalidState,
			"cannot cancel a payment intent with status %q", stored.Status)
	}
	canceled := stored.WithStatus(model.IntentStatusCanceled)
	g.intents[intent.ClientSecret] = canceled
	return canceled, nil
}
