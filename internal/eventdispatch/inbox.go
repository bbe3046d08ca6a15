package eventdispatch

import (
	"sync"
	"time"

	"github.com/Alfaashh/P2PChat/pkg/crypto"
)

// Message is one decrypted inbound payload.
type Message struct {
	Identity   string
	Payload    crypto.Payload
	ReceivedAt time.Time
}

// Inbox hands inbound messages from every read loop to a single delivery
// goroutine, so the handler sees one message at a time and per-connection
// order is preserved. When the queue is full new messages are dropped.
type Inbox struct {
	queue   chan Message
	handler func(Message)
	onDrop  func(Message)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewInbox starts the delivery goroutine. handler must not be nil.
func NewInbox(size int, handler func(Message), onDrop func(Message)) *Inbox {
	if size <= 0 {
		size = 1
	}
	in := &Inbox{
		queue:   make(chan Message, size),
		handler: handler,
		onDrop:  onDrop,
		done:    make(chan struct{}),
	}
	go in.run()
	return in
}

func (in *Inbox) run() {
	defer close(in.done)
	for msg := range in.queue {
		in.handler(msg)
	}
}

// Push queues msg without blocking. It returns false if msg was dropped
// because the queue is full or the inbox is closed.
func (in *Inbox) Push(msg Message) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if in.closed {
		return false
	}
	select {
	case in.queue <- msg:
		return true
	default:
		if in.onDrop != nil {
			in.onDrop(msg)
		}
		return false
	}
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	return len(in.queue)
}

// Close stops accepting messages, delivers what is already queued and
// waits for the delivery goroutine to exit. It is safe to call Close
// multiple times, but not from inside the handler.
func (in *Inbox) Close() {
	in.mu.Lock()
	if !in.closed {
		in.closed = true
		close(in.queue)
	}
	in.mu.Unlock()
	<-in.done
}
