package terminal

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/connection"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/discovery"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/payment"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/token"
)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// enableDebugLogging lowers the global log level for verbose output.
func enableDebugLogging() {
	c := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if logger, err := c.Build(); err == nil {
		zap.ReplaceGlobals(logger)
	}
}

// Dependencies are the host-supplied collaborators a Terminal is built
// from. Every field is required.
type Dependencies struct {
	// TokenProvider fetches connection tokens from the host's backend.
	TokenProvider token.Provider
	// Delegate receives connection/payment status notifications.
	Delegate Delegate
	// Scanner is the reader discovery transport.
	Scanner discovery.Scanner
	// Dialer establishes reader sessions.
	Dialer connection.SessionDialer
	// Gateway is the backend for intent creation/retrieval/cancellation.
	Gateway payment.Gateway
}

func (d Dependencies) validate() error {
	switch {
	case d.TokenProvider == nil:
		return errors.New("token provider is required")
	case d.Delegate == nil:
		return errors.New("terminal delegate is required")
	case d.Scanner == nil:
		return errors.New("discovery scanner is required")
	case d.Dialer == nil:
		return errors.New("session dialer is required")
	case d.Gateway == nil:
		return errors.New("payment gateway is required")
	}
	return nil
}

// Terminal is the single coordinating entry point for discovering readers,
// connecting to one, and driving payments to completion.
type Terminal struct {
	cfg      *config.Config
	queue    *async.Queue
	tokens   *token.Cache
	engine   *discovery.Engine
	conns    *connection.Manager
	payments *payment.Machine
	delegate Delegate

	mu            sync.Mutex
	paymentStatus model.PaymentStatus
}

// New constructs a Terminal with the given configuration and collaborators.
// The configuration is validated and defaulted, and a connection token is
// proactively fetched in the background so the first connect does not pay
// the provider round trip.
func New(cfg *config.Config, deps Dependencies) (*Terminal, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()

	if cfg.Debug {
		enableDebugLogging()
	}

	queue := async.NewQueue()
	tokens := token.NewCache(deps.TokenProvider)
	conns := connection.NewManager(deps.Dialer, tokens, queue, cfg.Timeouts)
	payments := payment.NewMachine(deps.Gateway, conns, queue, cfg.Timeouts)
	engine := discovery.NewEngine(deps.Scanner, queue)

	t := &Terminal{
		cfg:           cfg,
		queue:         queue,
		tokens:        tokens,
		engine:        engine,
		conns:         conns,
		payments:      payments,
		delegate:      deps.Delegate,
		paymentStatus: model.PaymentStatusNotReady,
	}
	conns.SetStatusFunc(t.connectionStatusChanged)
	payments.SetBusyFunc(t.busyChanged)

	tokens.Warm(context.Background())
	zap.L().Info("terminal initialized")
	return t, nil
}

// Configuration returns the configuration the terminal was built with.
func (t *Terminal) Configuration() *config.Config {
	return t.cfg
}

// ConnectionStatus returns the current reader connection status.
func (t *Terminal) ConnectionStatus() model.ConnectionStatus {
	return t.conns.Status()
}

// ConnectedReader returns the connected reader, or nil.
func (t *Terminal) ConnectedReader() *model.Reader {
	return t.conns.ConnectedReader()
}

// PaymentStatus returns the terminal's payment readiness: NotReady unless a
// reader is connected, ProcessingPayment while a reader operation is in
// flight, Ready otherwise.
func (t *Terminal) PaymentStatus() model.PaymentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paymentStatus
}

// ClearConnectionToken invalidates the cached connection token. Use it to
// switch backend accounts: disconnect, clear the token, then discover and
// connect again; the connect fetches a token from the new account.
func (t *Terminal) ClearConnectionToken() {
	t.tokens.Clear()
}

// DiscoverReaders begins discovering readers matching the configuration.
// Results stream to the delegate; the discovery stops on its own when a
// reader is connected, when the returned handle is canceled, when the
// configured timeout elapses, or on a scan error. A non-nil error means the
// discovery was rejected synchronously and the completion will never fire.
func (t *Terminal) DiscoverReaders(cfg config.DiscoveryConfiguration, delegate discovery.Delegate, completion func(error)) (*async.Cancelable, error) {
	return t.engine.Discover(cfg, delegate, completion)
}

// ConnectReader attempts to connect to a reader recently returned to the
// discovery delegate. On success the active discovery (if any) terminates
// with a nil completion and the terminal's connection status becomes
// Connected.
func (t *Terminal) ConnectReader(reader *model.Reader, completion connection.ReaderCompletion) {
	t.conns.Connect(reader, func(connected *model.Reader, err error) {
		if err == nil {
			t.engine.StopForConnect()
		}
		if completion != nil {
			completion(connected, err)
		}
	})
}

// DisconnectReader disconnects from the connected reader. On success the
// cached connection token is invalidated, so a subsequent connect fetches a
// fresh one.
func (t *Terminal) DisconnectReader(completion connection.ErrorCompletion) {
	t.conns.Disconnect(completion)
}

// CreatePaymentIntent creates a new payment intent with the given
// parameters. If the required information is not readily available in the
// app, create the intent on your server and use RetrievePaymentIntent here.
func (t *Terminal) CreatePaymentIntent(params model.PaymentIntentParams, completion payment.IntentCompletion) {
	t.payments.Create(params, completion)
}

// RetrievePaymentIntent retrieves a payment intent by client secret.
func (t *Terminal) RetrievePaymentIntent(clientSecret string, completion payment.IntentCompletion) {
	t.payments.Retrieve(clientSecret, completion)
}

// CollectPaymentMethod collects a payment method for the intent using the
// connected reader. See payment.Machine.CollectPaymentMethod for the full
// contract.
func (t *Terminal) CollectPaymentMethod(intent *model.PaymentIntent, delegate payment.InputDelegate, completion payment.IntentCompletion) (*async.Cancelable, error) {
	return t.payments.CollectPaymentMethod(intent, delegate, completion)
}

// ConfirmPaymentIntent confirms a collected payment intent. Call it
// immediately after a successful collect; inspect a failure's carried
// snapshot (errs.IntentOf) to decide how to retry. A confirmed intent is
// authorized but not settled; capture it on your backend.
func (t *Terminal) ConfirmPaymentIntent(intent *model.PaymentIntent, completion payment.IntentCompletion) {
	t.payments.Confirm(intent, completion)
}

// CancelPaymentIntent cancels a payment intent that has not been authorized
// yet.
func (t *Terminal) CancelPaymentIntent(intent *model.PaymentIntent, completion payment.IntentCompletion) {
	t.payments.Cancel(intent, completion)
}

// ReadSource reads a payment method with the connected reader without
// charging it. Sources created this way cannot be charged; use
// CollectPaymentMethod and ConfirmPaymentIntent to collect a payment.
func (t *Terminal) ReadSource(params model.ReadSourceParams, delegate payment.InputDelegate, completion payment.SourceCompletion) (*async.Cancelable, error) {
	return t.payments.ReadSource(params, delegate, completion)
}

// UpdateReader checks the connected reader for an available software
// update. When one is available the update delegate is notified and the
// completion fires with nil; otherwise the completion fires with a
// NoAvailableUpdate (or transport) error.
func (t *Terminal) UpdateReader(delegate UpdateDelegate, completion func(error)) {
	if completion == nil {
		completion = func(error) {}
	}
	if delegate == nil {
		t.queue.Dispatch(func() {
			completion(errs.New(errs.InvalidArgument, "update delegate is required"))
		})
		return
	}
	session, err := t.conns.Session()
	if err != nil {
		t.queue.Dispatch(func() { completion(err) })
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeouts.Request)
		defer cancel()
		update, err := session.CheckForUpdate(ctx)
		if err != nil {
			t.queue.Dispatch(func() {
				completion(errs.Wrap(errs.SessionFailed, "reader update check failed", err))
			})
			return
		}
		if update == nil {
			t.queue.Dispatch(func() {
				completion(errs.New(errs.NoAvailableUpdate, "no reader software update available"))
			})
			return
		}
		zap.L().Info("reader software update available", zap.String("version", update.Version))
		t.queue.Dispatch(func() {
			delegate.ReaderUpdateAvailable(update)
			completion(nil)
		})
	}()
}

// Close disconnects from the reader (best effort) and stops the dispatch
// goroutine. The terminal must not be used afterwards.
func (t *Terminal) Close() {
	if t.conns.Status() != model.ConnectionStatusNotConnected {
		done := make(chan struct{})
		t.conns.Disconnect(func(err error) {
			if err != nil {
				zap.L().Warn("disconnect during close failed", zap.Error(err))
			}
			close(done)
		})
		<-done
	}
	t.queue.Close()
}

// connectionStatusChanged runs on the dispatch goroutine for every
// connection transition.
func (t *Terminal) connectionStatusChanged(status model.ConnectionStatus) {
	t.delegate.DidChangeConnectionStatus(status)
	t.recomputePaymentStatus()
}

// busyChanged runs on the dispatch goroutine when a reader operation starts
// or settles.
func (t *Terminal) busyChanged(bool) {
	t.recomputePaymentStatus()
}

func (t *Terminal) recomputePaymentStatus() {
	var status model.PaymentStatus
	switch {
	case t.conns.Status() != model.ConnectionStatusConnected:
		status = model.PaymentStatusNotReady
	case t.payments.Busy():
		status = model.PaymentStatusProcessingPayment
	default:
		status = model.PaymentStatusReady
	}

	t.mu.Lock()
	changed := status != t.paymentStatus
	t.paymentStatus = status
	t.mu.Unlock()

	if changed {
		t.delegate.DidChangePaymentStatus(status)
	}
}
