package payment

import (
	"sync"

	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/async"
	"github.com/MAD-CITY-DISTRIBUTION/terminal-sdk-go/pkg/model"
)

// InputDelegate receives reader input events during a collect/read
// operation. The events are purely observational: the machine consumes no
// return value and hardware order is preserved. Callbacks run on the
// terminal's callback queue.
type InputDelegate interface {
	// DidRequestReaderInput reports the entry methods the reader accepts.
	DidRequestReaderInput(options model.ReaderInputOptions)
	// DidRequestReaderInputPrompt reports an instruction for the cardholder.
	DidRequestReaderInputPrompt(prompt model.ReaderInputPrompt)
}

// inputRouter forwards hardware input notifications to the delegate of the
// operation currently in flight. It holds no state beyond that delegate;
// once deactivated, further events are dropped rather than queued.
type inputRouter struct {
	queue *async.Queue

	mu       sync.Mutex
	delegate InputDelegate
}

func newInputRouter(queue *async.Queue) *inputRouter {
	return &inputRouter{queue: queue}
}

func (r *inputRouter) activate(delegate InputDelegate) {
	r.mu.Lock()
	r.delegate = delegate
	r.mu.Unlock()
}

func (r *inputRouter) deactivate() {
	r.mu.Lock()
	r.delegate = nil
	r.mu.Unlock()
}

// forward routes one hardware event to the active delegate, if any.
func (r *inputRouter) forward(ev model.InputEvent) {
	r.mu.Lock()
	delegate := r.delegate
	r.mu.Unlock()
	if delegate == nil {
		return
	}
	r.queue.Dispatch(func() {
		switch ev.Kind {
		case model.InputEventOptions:
			delegate.DidRequestReaderInput(ev.Options)
		case model.InputEventPrompt:
			delegate.DidRequestReaderInputPrompt(ev.Prompt)
		}
	})
}
