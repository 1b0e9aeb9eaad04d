package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/internal/testutil"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/connection"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// fakeGateway implements Gateway in memory and counts calls.
type fakeGateway struct {
	mu      sync.Mutex
	created int
	cancels int
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, params model.PaymentIntentParams) (*model.PaymentIntent, error) {
	g.mu.Lock()
	g.created++
	g.mu.Unlock()
	return &model.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Status:       model.IntentStatusRequiresPaymentMethod,
		Amount:       params.Amount,
		Currency:     params.Currency,
		Created:      time.Now(),
	}, nil
}

func (g *fakeGateway) RetrievePaymentIntent(ctx context.Context, clientSecret string) (*model.PaymentIntent, error) {
	return &model.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: clientSecret,
		Status:       model.IntentStatusRequiresPaymentMethod,
	}, nil
}

func (g *fakeGateway) CancelPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	g.mu.Lock()
	g.cancels++
	g.mu.Unlock()
	return intent.WithStatus(model.IntentStatusCanceled), nil
}

func (g *fakeGateway) cancelCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancels
}

// stubSession is a scriptable connection.ReaderSession.
type stubSession struct {
	collect func(ctx context.Context, events chan<- model.InputEvent) error
	confirm func(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error)
	read    func(ctx context.Context, events chan<- model.InputEvent) (*model.CardPresentSource, error)
}

func (s *stubSession) CollectPaymentMethod(ctx context.Context, intent *model.PaymentIntent, events chan<- model.InputEvent) error {
	if s.collect == nil {
		return nil
	}
	return s.collect(ctx, events)
}

func (s *stubSession) ConfirmPaymentIntent(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
	if s.confirm == nil {
		return intent.WithStatus(model.IntentStatusRequiresCapture), nil
	}
	return s.confirm(ctx, intent)
}

func (s *stubSession) ReadSource(ctx context.Context, params model.ReadSourceParams, events chan<- model.InputEvent) (*model.CardPresentSource, error) {
	if s.read == nil {
		return &model.CardPresentSource{ID: "src_test"}, nil
	}
	return s.read(ctx, events)
}

func (s *stubSession) CheckForUpdate(ctx context.Context) (*model.ReaderSoftwareUpdate, error) {
	return nil, nil
}

func (s *stubSession) Close(ctx context.Context) error { return nil }

// stubSessions hands out one session, or a NotConnected error when nil.
type stubSessions struct {
	session connection.ReaderSession
}

func (s *stubSessions) Session() (connection.ReaderSession, error) {
	if s.session == nil {
		return nil, errs.New(errs.NotConnected, "no reader connected")
	}
	return s.session, nil
}

// recordingInput collects forwarded input events.
type recordingInput struct {
	mu      sync.Mutex
	options []model.ReaderInputOptions
	prompts []model.ReaderInputPrompt
}

func (d *recordingInput) DidRequestReaderInput(o model.ReaderInputOptions) {
	d.mu.Lock()
	d.options = append(d.options, o)
	d.mu.Unlock()
}

func (d *recordingInput) DidRequestReaderInputPrompt(p model.ReaderInputPrompt) {
	d.mu.Lock()
	d.prompts = append(d.prompts, p)
	d.mu.Unlock()
}

func newTestMachine(t *testing.T, session connection.ReaderSession, timeouts config.Timeouts) (*Machine, *fakeGateway) {
	t.Helper()
	queue := async.NewQueue()
	t.Cleanup(queue.Close)
	gateway := &fakeGateway{}
	return NewMachine(gateway, &stubSessions{session: session}, queue, timeouts), gateway
}

func rpmIntent() *model.PaymentIntent {
	return &model.PaymentIntent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Status:       model.IntentStatusRequiresPaymentMethod,
		Amount:       decimal.NewFromInt(10),
		Currency:     "usd",
	}
}

type intentResult struct {
	intent *model.PaymentIntent
	err    error
}

func awaitIntent(t *testing.T, ch chan intentResult) intentResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not fire")
		return intentResult{}
	}
}

// TestMachine_CreateAndCancel verifies the gateway-backed lifecycle edges:
// create produces requires_payment_method, cancel produces canceled.
func TestMachine_CreateAndCancel(t *testing.T) {
	m, _ := newTestMachine(t, nil, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Create(model.PaymentIntentParams{Amount: decimal.NewFromInt(10), Currency: "usd"}, func(intent *model.PaymentIntent, err error) {
		results <- intentResult{intent, err}
	})
	created := awaitIntent(t, results)
	if created.err != nil {
		t.Fatalf("create failed: %v", created.err)
	}
	if created.intent.Status != model.IntentStatusRequiresPaymentMethod {
		t.Fatalf("created status = %q", created.intent.Status)
	}

	m.Cancel(created.intent, func(intent *model.PaymentIntent, err error) {
		results <- intentResult{intent, err}
	})
	canceled := awaitIntent(t, results)
	if canceled.err != nil {
		t.Fatalf("cancel failed: %v", canceled.err)
	}
	if canceled.intent.Status != model.IntentStatusCanceled {
		t.Fatalf("canceled status = %q", canceled.intent.Status)
	}
}

// TestMachine_CreateRejectsInvalidParams verifies parameter validation runs
// before the gateway is touched.
func TestMachine_CreateRejectsInvalidParams(t *testing.T) {
	m, gateway := newTestMachine(t, nil, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Create(model.PaymentIntentParams{Currency: "usd"}, func(intent *model.PaymentIntent, err error) {
		results <- intentResult{intent, err}
	})
	r := awaitIntent(t, results)
	if !errs.Is(r.err, errs.InvalidArgument) {
		t.Fatalf("error = %v, want InvalidArgument", r.err)
	}
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.created != 0 {
		t.Fatal("gateway called for invalid params")
	}
}

// TestMachine_RetrieveRequiresSecret verifies the empty-secret rejection.
func TestMachine_RetrieveRequiresSecret(t *testing.T) {
	m, _ := newTestMachine(t, nil, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Retrieve("", func(intent *model.PaymentIntent, err error) {
		results <- intentResult{intent, err}
	})
	if r := awaitIntent(t, results); !errs.Is(r.err, errs.InvalidArgument) {
		t.Fatalf("error = %v, want InvalidArgument", r.err)
	}
}

// TestMachine_CollectHappyPath verifies a successful collect forwards the
// reader's input events to the delegate and completes with a
// requires_confirmation snapshot, leaving the original intent untouched.
func TestMachine_CollectHappyPath(t *testing.T) {
	session := &stubSession{
		collect: func(ctx context.Context, events chan<- model.InputEvent) error {
			events <- model.InputEvent{Kind: model.InputEventOptions, Options: model.ReaderInputOptionSwipe | model.ReaderInputOptionInsert}
			events <- model.InputEvent{Kind: model.InputEventPrompt, Prompt: model.ReaderInputPromptRemoveCard}
			return nil
		},
	}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())

	intent := rpmIntent()
	delegate := &recordingInput{}
	results := make(chan intentResult, 1)
	c, err := m.CollectPaymentMethod(intent, delegate, func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	if err != nil {
		t.Fatalf("collect rejected: %v", err)
	}
	if c == nil {
		t.Fatal("collect returned a nil handle")
	}

	r := awaitIntent(t, results)
	if r.err != nil {
		t.Fatalf("collect failed: %v", r.err)
	}
	if r.intent.Status != model.IntentStatusRequiresConfirmation {
		t.Fatalf("collected status = %q", r.intent.Status)
	}
	if intent.Status != model.IntentStatusRequiresPaymentMethod {
		t.Fatalf("original intent mutated to %q", intent.Status)
	}

	testutil.WaitFor(t, 2*time.Second, func() bool {
		delegate.mu.Lock()
		defer delegate.mu.Unlock()
		return len(delegate.options) == 1 && len(delegate.prompts) == 1
	})
	delegate.mu.Lock()
	defer delegate.mu.Unlock()
	if delegate.options[0] != model.ReaderInputOptionSwipe|model.ReaderInputOptionInsert {
		t.Fatalf("unexpected options %v", delegate.options[0])
	}
	if delegate.prompts[0] != model.ReaderInputPromptRemoveCard {
		t.Fatalf("unexpected prompt %v", delegate.prompts[0])
	}

	if m.Busy() {
		t.Fatal("machine still busy after collect settled")
	}
}

// TestMachine_CollectRejections verifies every synchronous rejection leaves
// no side effects: no busy flag, no completion.
func TestMachine_CollectRejections(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())
	delegate := &recordingInput{}
	completion := func(*model.PaymentIntent, error) { t.Error("completion fired for a rejected collect") }

	if _, err := m.CollectPaymentMethod(nil, delegate, completion); !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("nil intent error = %v, want InvalidArgument", err)
	}

	confirmed := rpmIntent().WithStatus(model.IntentStatusRequiresConfirmation)
	if _, err := m.CollectPaymentMethod(confirmed, delegate, completion); !errs.Is(err, errs.IntentInvalidState) {
		t.Fatalf("wrong-status error = %v, want IntentInvalidState", err)
	}

	disconnected, _ := newTestMachine(t, nil, config.Timeouts{}.WithDefaults())
	if _, err := disconnected.CollectPaymentMethod(rpmIntent(), delegate, completion); !errs.Is(err, errs.NotConnected) {
		t.Fatalf("no-session error = %v, want NotConnected", err)
	}

	if m.Busy() {
		t.Fatal("rejected collect left the machine busy")
	}
	time.Sleep(20 * time.Millisecond)
}

// TestMachine_CollectCancel verifies that canceling mid-collect completes
// with a Canceled error and releases the busy flag.
func TestMachine_CollectCancel(t *testing.T) {
	session := &stubSession{
		collect: func(ctx context.Context, events chan<- model.InputEvent) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	c, err := m.CollectPaymentMethod(rpmIntent(), &recordingInput{}, func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	if err != nil {
		t.Fatalf("collect rejected: %v", err)
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return m.Busy() })

	c.Cancel()
	r := awaitIntent(t, results)
	if !errs.Is(r.err, errs.Canceled) {
		t.Fatalf("error = %v, want Canceled", r.err)
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return !m.Busy() })
}

// TestMachine_SecondReaderOpRejected verifies the busy flag serializes
// reader-interacting operations.
func TestMachine_SecondReaderOpRejected(t *testing.T) {
	release := make(chan struct{})
	session := &stubSession{
		collect: func(ctx context.Context, events chan<- model.InputEvent) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	_, err := m.CollectPaymentMethod(rpmIntent(), &recordingInput{}, func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	if err != nil {
		t.Fatalf("collect rejected: %v", err)
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return m.Busy() })

	if _, err := m.CollectPaymentMethod(rpmIntent(), &recordingInput{}, func(*model.PaymentIntent, error) {}); !errs.Is(err, errs.AlreadyBusy) {
		t.Fatalf("second collect error = %v, want AlreadyBusy", err)
	}
	if _, err := m.ReadSource(model.ReadSourceParams{}, &recordingInput{}, func(*model.CardPresentSource, error) {}); !errs.Is(err, errs.AlreadyBusy) {
		t.Fatalf("read source error = %v, want AlreadyBusy", err)
	}

	close(release)
	if r := awaitIntent(t, results); r.err != nil {
		t.Fatalf("collect failed: %v", r.err)
	}
}

// TestMachine_ConfirmHappyPath verifies a successful confirm reports the
// authorized snapshot.
func TestMachine_ConfirmHappyPath(t *testing.T) {
	m, _ := newTestMachine(t, &stubSession{}, config.Timeouts{}.WithDefaults())

	intent := rpmIntent().WithStatus(model.IntentStatusRequiresConfirmation)
	results := make(chan intentResult, 1)
	m.Confirm(intent, func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	r := awaitIntent(t, results)
	if r.err != nil {
		t.Fatalf("confirm failed: %v", r.err)
	}
	if r.intent.Status != model.IntentStatusRequiresCapture {
		t.Fatalf("confirmed status = %q", r.intent.Status)
	}
}

// TestMachine_ConfirmDeclineCarriesSnapshot verifies a decline reports
// CardDeclined with the bounced-back snapshot attached for retry.
func TestMachine_ConfirmDeclineCarriesSnapshot(t *testing.T) {
	session := &stubSession{
		confirm: func(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
			return intent.WithStatus(model.IntentStatusRequiresPaymentMethod),
				errs.New(errs.CardDeclined, "your card was declined")
		},
	}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Confirm(rpmIntent().WithStatus(model.IntentStatusRequiresConfirmation), func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	r := awaitIntent(t, results)
	if !errs.Is(r.err, errs.CardDeclined) {
		t.Fatalf("error = %v, want CardDeclined", r.err)
	}
	snapshot := errs.IntentOf(r.err)
	if snapshot == nil {
		t.Fatal("decline carried no snapshot")
	}
	if snapshot.Status != model.IntentStatusRequiresPaymentMethod {
		t.Fatalf("snapshot status = %q, want requires_payment_method", snapshot.Status)
	}
}

// TestMachine_ConfirmTimeoutHidesSnapshot verifies a timed-out confirm
// reports NetworkTimeout with no snapshot: the true outcome is unknown and
// must not be guessed.
func TestMachine_ConfirmTimeoutHidesSnapshot(t *testing.T) {
	session := &stubSession{
		confirm: func(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	timeouts := config.Timeouts{}.WithDefaults()
	timeouts.Confirm = 20 * time.Millisecond
	m, _ := newTestMachine(t, session, timeouts)

	results := make(chan intentResult, 1)
	m.Confirm(rpmIntent().WithStatus(model.IntentStatusRequiresConfirmation), func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	r := awaitIntent(t, results)
	if !errs.Is(r.err, errs.NetworkTimeout) {
		t.Fatalf("error = %v, want NetworkTimeout", r.err)
	}
	if errs.IntentOf(r.err) != nil {
		t.Fatal("timed-out confirm carried a snapshot")
	}
}

// TestMachine_ConfirmNeverAttachesAuthorizedSnapshot verifies a failure
// snapshot claiming requires_capture is dropped rather than handed to hosts.
func TestMachine_ConfirmNeverAttachesAuthorizedSnapshot(t *testing.T) {
	session := &stubSession{
		confirm: func(ctx context.Context, intent *model.PaymentIntent) (*model.PaymentIntent, error) {
			return intent.WithStatus(model.IntentStatusRequiresCapture),
				errs.New(errs.SessionFailed, "reader reported a late failure")
		},
	}
	m, _ := newTestMachine(t, session, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Confirm(rpmIntent().WithStatus(model.IntentStatusRequiresConfirmation), func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	r := awaitIntent(t, results)
	if r.err == nil {
		t.Fatal("expected a confirm failure")
	}
	if errs.IntentOf(r.err) != nil {
		t.Fatal("requires_capture snapshot attached to a failure")
	}
}

// TestMachine_ConfirmRejectsWrongStatus verifies the status precondition.
func TestMachine_ConfirmRejectsWrongStatus(t *testing.T) {
	m, _ := newTestMachine(t, &stubSession{}, config.Timeouts{}.WithDefaults())

	results := make(chan intentResult, 1)
	m.Confirm(rpmIntent(), func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	if r := awaitIntent(t, results); !errs.Is(r.err, errs.IntentInvalidState) {
		t.Fatalf("error = %v, want IntentInvalidState", r.err)
	}
}

// TestMachine_CancelRejectsAuthorizedIntent verifies canceling an authorized
// intent fails fast without touching the gateway.
func TestMachine_CancelRejectsAuthorizedIntent(t *testing.T) {
	m, gateway := newTestMachine(t, &stubSession{}, config.Timeouts{}.WithDefaults())

	authorized := rpmIntent().WithStatus(model.IntentStatusRequiresCapture)
	results := make(chan intentResult, 1)
	m.Cancel(authorized, func(updated *model.PaymentIntent, err error) {
		results <- intentResult{updated, err}
	})
	if r := awaitIntent(t, results); !errs.Is(r.err, errs.IntentInvalidState) {
		t.Fatalf("error = %v, want IntentInvalidState", r.err)
	}
	if gateway.cancelCount() != 0 {
		t.Fatal("gateway cancel called for an authorized intent")
	}
}

// TestMachine_ReadSourceHappyPath verifies read source returns the card
// record and serializes like collect.
func TestMachine_ReadSourceHappyPath(t *testing.T) {
	m, _ := newTestMachine(t, &stubSession{}, config.Timeouts{}.WithDefaults())

	type sourceResult struct {
		source *model.CardPresentSource
		err    error
	}
	results := make(chan sourceResult, 1)
	_, err := m.ReadSource(model.ReadSourceParams{}, &recordingInput{}, func(source *model.CardPresentSource, err error) {
		results <- sourceResult{source, err}
	})
	if err != nil {
		t.Fatalf("read source rejected: %v", err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("read source failed: %v", r.err)
		}
		if r.source == nil || r.source.ID != "src_test" {
			t.Fatalf("unexpected source %v", r.source)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not fire")
	}
	testutil.WaitFor(t, 2*time.Second, func() bool { return !m.Busy() })
}
