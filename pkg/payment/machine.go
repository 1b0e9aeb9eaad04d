package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/connection"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// IntentCompletion receives the resulting intent snapshot or the failure.
// On confirm failures the error (see errs.IntentOf) may carry the best-known
// updated snapshot even though the intent argument here is nil.
type IntentCompletion func(intent *model.PaymentIntent, err error)

// SourceCompletion receives the card-present source read or the failure.
type SourceCompletion func(source *model.CardPresentSource, err error)

// SessionSource supplies the live reader session for operations that need
// reader interaction. *connection.Manager implements it.
type SessionSource interface {
	Session() (connection.ReaderSession, error)
}

// Machine drives payment intents through their lifecycle. Reader-interacting
// operations (collect, confirm, read source) are serialized by an explicit
// busy flag: a second such operation fails with AlreadyBusy while one is in
// flight. Nothing is ever retried automatically.
type Machine struct {
	gateway  Gateway
	sessions SessionSource
	queue    *async.Queue
	timeouts config.Timeouts
	router   *inputRouter
	onBusy   func(busy bool)

	mu   sync.Mutex
	busy bool
}

// NewMachine returns an idle machine.
func NewMachine(gateway Gateway, sessions SessionSource, queue *async.Queue, timeouts config.Timeouts) *Machine {
	return &Machine{
		gateway:  gateway,
		sessions: sessions,
		queue:    queue,
		timeouts: timeouts,
		router:   newInputRouter(queue),
	}
}

// SetBusyFunc registers the busy-transition hook. It must be set before the
// first operation; the hook runs on the callback queue.
func (m *Machine) SetBusyFunc(fn func(bool)) {
	m.mu.Lock()
	m.onBusy = fn
	m.mu.Unlock()
}

// Busy reports whether a reader-interacting operation is in flight.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Create creates a fresh payment intent in requires_payment_method. No
// reader interaction; the completion fires exactly once on the callback
// queue.
func (m *Machine) Create(params model.PaymentIntentParams, completion IntentCompletion) {
	if completion == nil {
		zap.L().Error("create payment intent called without completion")
		return
	}
	if err := params.Validate(); err != nil {
		m.complete(completion, nil, errs.Wrap(errs.InvalidArgument, "invalid payment intent parameters", err))
		return
	}
	go func() {
		ctx, cancel := m.requestContext()
		defer cancel()
		intent, err := m.gateway.CreatePaymentIntent(ctx, params)
		if err != nil {
			m.complete(completion, nil, errs.Wrap(errs.Internal, "create payment intent failed", err))
			return
		}
		zap.L().Info("payment intent created", zap.String("intent", intent.ID))
		m.complete(completion, intent, nil)
	}()
}

// Retrieve fetches the current remote state of an intent by client secret.
// Pure read, idempotent, safe to retry; the recommended disambiguation step
// after a confirm timeout (without a guarantee that the fetched status
// reflects the timed-out request).
func (m *Machine) Retrieve(clientSecret string, completion IntentCompletion) {
	if completion == nil {
		zap.L().Error("retrieve payment intent called without completion")
		return
	}
	if clientSecret == "" {
		m.complete(completion, nil, errs.New(errs.InvalidArgument, "client secret is required"))
		return
	}
	go func() {
		ctx, cancel := m.requestContext()
		defer cancel()
		intent, err := m.gateway.RetrievePaymentIntent(ctx, clientSecret)
		if err != nil {
			m.complete(completion, nil, errs.Wrap(errs.Internal, "retrieve payment intent failed", err))
			return
		}
		m.complete(completion, intent, nil)
	}()
}

// CollectPaymentMethod drives the reader-side card read for the intent.
// A non-nil error means the call was rejected synchronously: no reader was
// touched, no state changed, and the completion will never fire. Rejections:
// NotConnected, AlreadyBusy, IntentInvalidState (the intent must be in
// requires_payment_method, which also makes the call re-entrant after a
// failed collect on the same intent, to try another card).
//
// While the read runs, input events are forwarded to the delegate. Cancel
// via the returned handle aborts the read: the completion fires with a
// Canceled error and the intent status is unchanged. On success the
// completion receives a snapshot in requires_confirmation.
func (m *Machine) CollectPaymentMethod(intent *model.PaymentIntent, delegate InputDelegate, completion IntentCompletion) (*async.Cancelable, error) {
	if intent == nil || delegate == nil || completion == nil {
		return nil, errs.New(errs.InvalidArgument, "intent, input delegate and completion are required")
	}
	if intent.Status != model.IntentStatusRequiresPaymentMethod {
		return nil, errs.Newf(errs.IntentInvalidState,
			"collect requires status %q, intent is %q", model.IntentStatusRequiresPaymentMethod, intent.Status)
	}
	session, err := m.sessions.Session()
	if err != nil {
		return nil, err
	}
	if err := m.acquire(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(context.Background(), m.timeouts.Collect)
	c := async.NewCancelable(cancel)
	m.router.activate(delegate)

	zap.L().Info("collecting payment method", zap.String("intent", intent.ID))
	go func() {
		defer cancel()
		err := m.runWithEvents(ctx, func(events chan<- model.InputEvent) error {
			return session.CollectPaymentMethod(ctx, intent, events)
		})
		m.router.deactivate()
		m.release()
		c.Settle()
		if err != nil {
			m.complete(completion, nil, m.collectError(err))
			return
		}
		m.complete(completion, intent.WithStatus(model.IntentStatusRequiresConfirmation), nil)
	}()
	return c, nil
}

// ReadSource reads a payment method without charging it. Same preconditions
// and cancellation semantics as CollectPaymentMethod, minus the intent.
func (m *Machine) ReadSource(params model.ReadSourceParams, delegate InputDelegate, completion SourceCompletion) (*async.Cancelable, error) {
	if delegate == nil || completion == nil {
		return nil, errs.New(errs.InvalidArgument, "input delegate and completion are required")
	}
	session, err := m.sessions.Session()
	if err != nil {
		return nil, err
	}
	if err := m.acquire(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(context.Background(), m.timeouts.Collect)
	c := async.NewCancelable(cancel)
	m.router.activate(delegate)

	go func() {
		defer cancel()
		var source *model.CardPresentSource
		err := m.runWithEvents(ctx, func(events chan<- model.InputEvent) error {
			var readErr error
			source, readErr = session.ReadSource(ctx, params, events)
			return readErr
		})
		m.router.deactivate()
		m.release()
		c.Settle()
		if err != nil {
			m.queue.Dispatch(func() { completion(nil, m.collectError(err)) })
			return
		}
		m.queue.Dispatch(func() { completion(source, nil) })
	}()
	return c, nil
}

// Confirm submits the intent for authorization through the reader session.
// The completion fires exactly once; on failure the error carries the
// best-known updated snapshot (see the package comment for the retry
// contract). Rejections (NotConnected, AlreadyBusy, IntentInvalidState) are
// reported through the completion and leave all state untouched.
func (m *Machine) Confirm(intent *model.PaymentIntent, completion IntentCompletion) {
	if completion == nil {
		zap.L().Error("confirm called without completion")
		return
	}
	if intent == nil {
		m.complete(completion, nil, errs.New(errs.InvalidArgument, "intent is required"))
		return
	}
	if intent.Status != model.IntentStatusRequiresConfirmation {
		m.complete(completion, nil, errs.Newf(errs.IntentInvalidState,
			"confirm requires status %q, intent is %q", model.IntentStatusRequiresConfirmation, intent.Status))
		return
	}
	session, err := m.sessions.Session()
	if err != nil {
		m.complete(completion, nil, err)
		return
	}
	if err := m.acquire(); err != nil {
		m.complete(completion, nil, err)
		return
	}

	zap.L().Info("confirming payment intent", zap.String("intent", intent.ID))
	go func() {
		ctx, cancel := withTimeout(context.Background(), m.timeouts.Confirm)
		defer cancel()
		updated, err := session.ConfirmPaymentIntent(ctx, intent)
		m.release()
		if err == nil {
			if updated == nil {
				updated = intent.WithStatus(model.IntentStatusRequiresCapture)
			}
			zap.L().Info("payment intent confirmed", zap.String("intent", updated.ID))
			m.complete(completion, updated, nil)
			return
		}
		m.complete(completion, nil, m.confirmError(intent, updated, err))
	}()
}

// confirmError classifies a confirm failure and attaches the snapshot the
// host needs to retry safely.
func (m *Machine) confirmError(intent, updated *model.PaymentIntent, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errs.Is(err, errs.NetworkTimeout) {
		// The request may or may not have reached the backend; the host must
		// not assume either outcome.
		zap.L().Warn("confirm timed out; intent status unknown", zap.String("intent", intent.ID))
		return errs.Wrap(errs.NetworkTimeout, "confirm timed out; payment intent status unknown", err)
	}

	// Only statuses the host can act on are attached; anything else means
	// the outcome is not trustworthy as a failure snapshot.
	var snapshot *model.PaymentIntent
	if updated != nil {
		switch updated.Status {
		case model.IntentStatusRequiresPaymentMethod, model.IntentStatusRequiresConfirmation:
			snapshot = updated
		}
	}

	code := errs.CodeOf(err)
	if code == errs.Internal || code == "" {
		code = errs.SessionFailed
	}
	e := errs.Wrap(code, "confirm payment intent failed", err).WithIntent(snapshot)
	zap.L().Warn("confirm failed", zap.String("intent", intent.ID), zap.Error(e))
	return e
}

// Cancel cancels the intent. Legal only from requires_payment_method or
// requires_confirmation; canceling an authorized (requires_capture) intent
// fails fast without touching the backend.
func (m *Machine) Cancel(intent *model.PaymentIntent, completion IntentCompletion) {
	if completion == nil {
		zap.L().Error("cancel called without completion")
		return
	}
	if intent == nil {
		m.complete(completion, nil, errs.New(errs.InvalidArgument, "intent is required"))
		return
	}
	switch intent.Status {
	case model.IntentStatusRequiresPaymentMethod, model.IntentStatusRequiresConfirmation:
	default:
		m.complete(completion, nil, errs.Newf(errs.IntentInvalidState,
			"cannot cancel a payment intent with status %q", intent.Status))
		return
	}
	go func() {
		ctx, cancel := m.requestContext()
		defer cancel()
		canceled, err := m.gateway.CancelPaymentIntent(ctx, intent)
		if err != nil {
			m.complete(completion, nil, errs.Wrap(errs.Internal, "cancel payment intent failed", err))
			return
		}
		zap.L().Info("payment intent canceled", zap.String("intent", intent.ID))
		m.complete(completion, canceled, nil)
	}()
}

// runWithEvents pumps the session's input events through the router while
// op runs, then tears the channel down.
func (m *Machine) runWithEvents(ctx context.Context, op func(chan<- model.InputEvent) error) error {
	events := make(chan model.InputEvent, 8)
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		for ev := range events {
			m.router.forward(ev)
		}
	}()
	err := op(events)
	close(events)
	<-pumped
	return err
}

// collectError maps a collect/read failure to its public error. A read
// stopped by cancellation reports Canceled with the intent unchanged; if the
// session had already produced its result when the cancel landed, the
// result wins and this path is never reached.
func (m *Machine) collectError(err error) error {
	if errors.Is(err, context.Canceled) {
		return errs.New(errs.Canceled, "payment method collection canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.Canceled, "payment method collection timed out")
	}
	return errs.Wrap(errs.SessionFailed, "payment method collection failed", err)
}

// acquire takes the reader busy flag.
func (m *Machine) acquire() error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return errs.New(errs.AlreadyBusy, "another reader operation is already in flight")
	}
	m.busy = true
	fn := m.onBusy
	m.mu.Unlock()
	if fn != nil {
		m.queue.Dispatch(func() { fn(true) })
	}
	return nil
}

func (m *Machine) release() {
	m.mu.Lock()
	m.busy = false
	fn := m.onBusy
	m.mu.Unlock()
	if fn != nil {
		m.queue.Dispatch(func() { fn(false) })
	}
}

func (m *Machine) complete(completion IntentCompletion, intent *model.PaymentIntent, err error) {
	m.queue.Dispatch(func() { completion(intent, err) })
}

func (m *Machine) requestContext() (context.Context, context.CancelFunc) {
	return withTimeout(context.Background(), m.timeouts.Request)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
