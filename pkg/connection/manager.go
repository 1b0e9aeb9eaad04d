// Package connection owns the single active reader connection. The manager
// drives connect/disconnect through the external session dialer, tracks the
// connection status state machine, and coordinates connection-token fetching
// with the token cache.
//
// Status transitions are strictly
//
//	NotConnected -> Connecting -> {Connected | NotConnected}
//	{Connected, Connecting}    -> NotConnected
//
// and no other edges occur.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/config"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/errs"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/token"
)

// ReaderCompletion receives the connected reader or the connect failure.
type ReaderCompletion func(reader *model.Reader, err error)

// ErrorCompletion receives nil on success or the operation failure.
type ErrorCompletion func(err error)

// Manager owns the reader connection. One reader may be connected at a time.
type Manager struct {
	dialer   SessionDialer
	tokens   *token.Cache
	queue    *async.Queue
	timeouts config.Timeouts
	onStatus func(model.ConnectionStatus)

	mu         sync.Mutex
	status     model.ConnectionStatus
	reader     *model.Reader
	session    ReaderSession
	dialCancel context.CancelFunc
}

// NewManager returns a manager in the NotConnected state.
func NewManager(dialer SessionDialer, tokens *token.Cache, queue *async.Queue, timeouts config.Timeouts) *Manager {
	return &Manager{
		dialer:   dialer,
		tokens:   tokens,
		queue:    queue,
		timeouts: timeouts,
	}
}

// SetStatusFunc registers the status-change hook. It must be set before the
// first operation; the hook runs on the callback queue.
func (m *Manager) SetStatusFunc(fn func(model.ConnectionStatus)) {
	m.mu.Lock()
	m.onStatus = fn
	m.mu.Unlock()
}

// Status returns the current connection status.
func (m *Manager) Status() model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ConnectedReader returns the connected reader, or nil.
func (m *Manager) ConnectedReader() *model.Reader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reader
}

// Session returns the live reader session, or a NotConnected error.
func (m *Manager) Session() (ReaderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != model.ConnectionStatusConnected || m.session == nil {
		return nil, errs.New(errs.NotConnected, "no reader connected")
	}
	return m.session, nil
}

// Connect establishes a session with the given reader. It obtains a
// connection token from the cache (fetching a fresh one if none is cached)
// and dials the session with it. The completion fires exactly once on the
// callback queue.
//
// Connect while Connected or Connecting fails with AlreadyConnected or
// AlreadyConnecting and has no side effects. On failure the status reverts
// to NotConnected and the cached token is kept for the next attempt, unless
// the reader rejected the token, in which case the cache is cleared so the
// retry fetches fresh.
func (m *Manager) Connect(reader *model.Reader, completion ReaderCompletion) {
	if completion == nil {
		zap.L().Error("connect called without completion")
		return
	}
	if reader == nil {
		m.queue.Dispatch(func() {
			completion(nil, errs.New(errs.InvalidArgument, "reader is required"))
		})
		return
	}

	m.mu.Lock()
	switch m.status {
	case model.ConnectionStatusConnected:
		m.mu.Unlock()
		m.queue.Dispatch(func() {
			completion(nil, errs.New(errs.AlreadyConnected, "a reader is already connected"))
		})
		return
	case model.ConnectionStatusConnecting:
		m.mu.Unlock()
		m.queue.Dispatch(func() {
			completion(nil, errs.New(errs.AlreadyConnecting, "a connect is already in flight"))
		})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel
	m.setStatusLocked(model.ConnectionStatusConnecting)
	m.mu.Unlock()

	zap.L().Info("connecting to reader", zap.String("serial", reader.SerialNumber))
	go m.dial(ctx, cancel, reader, completion)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, reader *model.Reader, completion ReaderCompletion) {
	defer cancel()

	tctx, tcancel := withTimeout(ctx, m.timeouts.TokenFetch)
	tok, err := m.tokens.Token(tctx)
	tcancel()
	if err != nil {
		m.failConnect(completion, err)
		return
	}

	dctx, dcancel := withTimeout(ctx, m.timeouts.Connect)
	session, err := m.dialer.DialSession(dctx, tok, reader)
	dcancel()
	if err != nil {
		if errs.Is(err, errs.InvalidToken) {
			m.tokens.Clear()
			m.failConnect(completion, err)
			return
		}
		m.failConnect(completion, errs.Wrap(errs.SessionFailed, "failed to establish reader session", err))
		return
	}

	m.mu.Lock()
	if ctx.Err() != nil || m.status != model.ConnectionStatusConnecting {
		// Disconnected while the dial was in flight.
		m.mu.Unlock()
		_ = session.Close(context.Background())
		m.queue.Dispatch(func() {
			completion(nil, errs.New(errs.Canceled, "connect canceled"))
		})
		return
	}
	m.session = session
	m.reader = reader
	m.dialCancel = nil
	m.setStatusLocked(model.ConnectionStatusConnected)
	m.mu.Unlock()

	zap.L().Info("reader connected", zap.String("serial", reader.SerialNumber))
	m.queue.Dispatch(func() { completion(reader, nil) })
}

// failConnect reverts a failed connect to NotConnected and reports err.
func (m *Manager) failConnect(completion ReaderCompletion, err error) {
	m.mu.Lock()
	if m.status == model.ConnectionStatusConnecting {
		m.dialCancel = nil
		m.setStatusLocked(model.ConnectionStatusNotConnected)
	}
	m.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		err = errs.New(errs.Canceled, "connect canceled")
	}
	zap.L().Warn("connect failed", zap.Error(err))
	m.queue.Dispatch(func() { completion(nil, err) })
}

// Disconnect tears down the connection. Legal from Connected or Connecting
// (the in-flight dial is canceled); the status always becomes NotConnected
// and the completion fires exactly once with nil or an error. On success the
// cached connection token is invalidated so a subsequent connect fetches a
// fresh one. This is the hook that lets hosts rotate backend accounts.
func (m *Manager) Disconnect(completion ErrorCompletion) {
	if completion == nil {
		completion = func(error) {}
	}

	m.mu.Lock()
	switch m.status {
	case model.ConnectionStatusNotConnected:
		m.mu.Unlock()
		m.queue.Dispatch(func() {
			completion(errs.New(errs.NotConnected, "no reader connected"))
		})
		return
	case model.ConnectionStatusConnecting:
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}
		m.setStatusLocked(model.ConnectionStatusNotConnected)
		m.mu.Unlock()
		m.tokens.Clear()
		m.queue.Dispatch(func() { completion(nil) })
		return
	}
	session := m.session
	reader := m.reader
	m.session = nil
	m.reader = nil
	m.setStatusLocked(model.ConnectionStatusNotConnected)
	m.mu.Unlock()

	go func() {
		ctx, cancel := withTimeout(context.Background(), m.timeouts.Connect)
		defer cancel()
		err := session.Close(ctx)
		if err != nil {
			zap.L().Warn("reader session close failed", zap.Error(err))
			m.queue.Dispatch(func() { completion(err) })
			return
		}
		m.tokens.Clear()
		if reader != nil {
			zap.L().Info("reader disconnected", zap.String("serial", reader.SerialNumber))
		}
		m.queue.Dispatch(func() { completion(nil) })
	}()
}

// setStatusLocked records a status transition and schedules the hook.
// Callers hold m.mu.
func (m *Manager) setStatusLocked(status model.ConnectionStatus) {
	if m.status == status {
		return
	}
	m.status = status
	if fn := m.onStatus; fn != nil {
		m.queue.Dispatch(func() { fn(status) })
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
