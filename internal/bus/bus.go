// Package bus defines the Msg collaborator contract — the message
// bus the coordinator reads commands from and writes pings to — plus
// an in-memory driver sufficient to run the coordinator standalone and
// to drive behavioral tests.
package bus

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Topics the dispatch loop subscribes to, matching the original's
// fixed topic tuple.
var Topics = []string{"admin", "ns", "vim_account", "sdn"}

// Message is one bus command: a topic, a command name, and its
// parameters.
type Message struct {
	Topic   string
	Command string
	Params  map[string]interface{}
}

// Msg is the message-bus collaborator contract. Db, Fs, and the RO/VCA
// clients have their own contracts elsewhere; this is the bus.
type Msg interface {
	// Write publishes a command onto topic.
	Write(ctx context.Context, topic, command string, params map[string]interface{}) error
	// Read blocks until a message arrives on any of topics, or ctx is
	// cancelled.
	Read(ctx context.Context, topics []string) (Message, error)
	// Disconnect releases any held resources.
	Disconnect() error
}

// MemoryBus is an in-process Msg implementation backed by a FIFO queue
// per topic and one shared notify channel that wakes blocked Reads.
// It's the default
// driver (config: message.driver=memory) and the one used throughout
// the test suite.
type MemoryBus struct {
	mu       sync.Mutex
	queues   map[string][]Message
	notify   chan struct{}
	limiter  *rate.Limiter
	closed   bool
}

// NewMemoryBus builds an empty MemoryBus. readRate bounds how fast
// Read will return successive messages, the in-process analogue of
// the original's bus-driver-level throttling; pass rate.Inf to
// disable it (the default for tests).
func NewMemoryBus(readRate rate.Limit) *MemoryBus {
	return &MemoryBus{
		queues:  make(map[string][]Message),
		notify:  make(chan struct{}, 1),
		limiter: rate.NewLimiter(readRate, 1),
	}
}

func (b *MemoryBus) Write(ctx context.Context, topic, command string, params map[string]interface{}) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus: write on closed bus")
	}
	b.queues[topic] = append(b.queues[topic], Message{Topic: topic, Command: command, Params: params})
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *MemoryBus) Read(ctx context.Context, topics []string) (Message, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return Message{}, err
	}
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return Message{}, fmt.Errorf("bus: read on closed bus")
		}
		for _, topic := range topics {
			q := b.queues[topic]
			if len(q) > 0 {
				msg := q[0]
				b.queues[topic] = q[1:]
				b.mu.Unlock()
				return msg, nil
			}
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-b.notify:
		}
	}
}

func (b *MemoryBus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
