package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// Delegate receives discovery results. Implementations are invoked on the
// terminal's callback queue; the engine never retains the delegate beyond
// the scan it was registered for.
type Delegate interface {
	// DidUpdateDiscoveredReaders delivers the readers found so far, in scan
	// order. It may be called zero or more times before the discovery
	// completes.
	DidUpdateDiscoveredReaders(readers []*model.Reader)
}

// Scanner is the external scan transport. Scan streams batches of readers
// into found until ctx ends or the scan fails. Implementations must not
// write to found after returning and must return promptly once ctx is done.
type Scanner interface {
	Scan(ctx context.Context, cfg config.DiscoveryConfiguration, found chan<- []*model.Reader) error
}

const (
	reasonNone int32 = iota
	reasonConnect
	reasonCancel
)

type run struct {
	cancel context.CancelFunc
	reason atomic.Int32
}

// finish records why the discovery is ending and stops the scan. The first
// reason wins.
func (r *run) finish(reason int32) {
	if r.reason.CompareAndSwap(reasonNone, reason) {
		r.cancel()
	}
}

// Engine drives reader discovery. At most one discovery is active at a time.
type Engine struct {
	scanner Scanner
	queue   *async.Queue

	mu      sync.Mutex
	current *run
}

// NewEngine returns an engine scanning through the given transport and
// delivering callbacks on the given queue.
func NewEngine(scanner Scanner, queue *async.Queue) *Engine {
	return &Engine{scanner: scanner, queue: queue}
}

// Discover starts a scan. A non-nil error means the discovery was rejected
// synchronously (another discovery is active, or the arguments are invalid),
// no scan was started, and completion will never fire. Otherwise the
// delegate receives reader updates until the scan terminates, and completion
// fires exactly once with nil (host connected), a Canceled error, a
// DiscoveryTimeout error, or a DiscoveryFailed error.
func (e *Engine) Discover(cfg config.DiscoveryConfiguration, delegate Delegate, completion func(error)) (*async.Cancelable, error) {
	if delegate == nil || completion == nil {
		return nil, errs.New(errs.InvalidArgument, "discovery delegate and completion are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "invalid discovery configuration", err)
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return nil, errs.New(errs.AlreadyBusy, "another discovery is already in flight")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel}
	e.current = r
	e.mu.Unlock()

	zap.L().Debug("discovery started",
		zap.Stringer("device_type", cfg.DeviceType),
		zap.Duration("timeout", cfg.Timeout))

	c := async.NewCancelable(func() { r.finish(reasonCancel) })
	go e.scan(ctx, cfg, delegate, completion, r, c)
	return c, nil
}

// StopForConnect terminates an active discovery because the host connected
// to a reader; the discovery completion fires with nil. No-op when no
// discovery is active.
func (e *Engine) StopForConnect() {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r != nil {
		r.finish(reasonConnect)
	}
}

func (e *Engine) scan(ctx context.Context, cfg config.DiscoveryConfiguration, delegate Delegate, completion func(error), r *run, c *async.Cancelable) {
	found := make(chan []*model.Reader, 8)
	scanDone := make(chan error, 1)
	go func() {
		scanDone <- e.scanner.Scan(ctx, cfg, found)
	}()

	var timeout <-chan time.Time
	if cfg.Timeout > 0 {
		timer := time.NewTimer(cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var result error
loop:
	for {
		select {
		case readers := <-found:
			if len(readers) == 0 {
				continue
			}
			batch := readers
			e.queue.Dispatch(func() { delegate.DidUpdateDiscoveredReaders(batch) })
		case <-timeout:
			result = errs.New(errs.DiscoveryTimeout, "discovery timed out before a reader was connected")
			break loop
		case err := <-scanDone:
			scanDone = nil
			if ctx.Err() != nil {
				result = r.result()
				break loop
			}
			if err != nil {
				result = errs.Wrap(errs.DiscoveryFailed, "reader scan failed", err)
				break loop
			}
			// Scanner drained its results; keep waiting for connect,
			// cancel, or timeout.
		case <-ctx.Done():
			result = r.result()
			break loop
		}
	}

	r.cancel()
	// Drain found so a scanner blocked mid-send can observe ctx and return.
	for scanDone != nil {
		select {
		case <-found:
		case <-scanDone:
			scanDone = nil
		}
	}

	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()

	c.Settle()
	if result != nil {
		zap.L().Debug("discovery ended", zap.Error(result))
	} else {
		zap.L().Debug("discovery ended: reader connected")
	}
	e.queue.Dispatch(func() { completion(result) })
}

// result maps the recorded termination reason to the completion error.
func (r *run) result() error {
	switch r.reason.Load() {
	case reasonConnect:
		return nil
	default:
		return errs.New(errs.Canceled, "discovery canceled")
	}
}
