package mbaudio

import (
	"fmt"
	"sync"
	"time"
)

// MessageKind identifies a bus message.
type MessageKind int

const (
	MessageEOS MessageKind = iota
	MessageError
	MessageSegmentDone
	MessageStateChanged
	MessageStreamDiscovered
	// MessageEffectFinished is posted when an attached effect reached end-of-stream.
	MessageEffectFinished
	// MessageTriggerEffect asks the controller to attach an effect.
	MessageTriggerEffect
	MessageWarning
)

func (k MessageKind) String() string {
	switch k {
	case MessageEOS:
		return "eos"
	case MessageError:
		return "error"
	case MessageSegmentDone:
		return "segment-done"
	case MessageStateChanged:
		return "state-changed"
	case MessageStreamDiscovered:
		return "stream-discovered"
	case MessageEffectFinished:
		return "effect-finished"
	case MessageTriggerEffect:
		return "trigger-effect"
	case MessageWarning:
		return "warning"
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// Message is an asynchronous notification from the graph or the controller.
type Message struct {
	Kind MessageKind
	// Source is the name of the element that posted the message.
	Source string
	// Old and New are set for MessageStateChanged.
	Old, New State
	Err      error
	// Position is the stream time of a segment-done.
	Position time.Duration
	Caps     Caps
	// Token ties a MessageEffectFinished to one attach cycle.
	Token string
}

// Bus is an unbounded message queue with a single consumer.
// Post never blocks, so it is safe to call from data-flow goroutines.
type Bus struct {
	m      sync.Mutex
	queue  []Message
	ready  chan struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{ready: make(chan struct{}, 1)}
}

// Post appends msg and wakes the consumer. It reports false once the bus is closed.
func (b *Bus) Post(msg Message) bool {
	b.m.Lock()
	if b.closed {
		b.m.Unlock()
		return false
	}
	b.queue = append(b.queue, msg)
	b.m.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled whenever messages were posted since the last Drain.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// Drain removes and returns every queued message.
func (b *Bus) Drain() []Message {
	b.m.Lock()
	defer b.m.Unlock()
	msgs := b.queue
	b.queue = nil
	return msgs
}

// Pending returns the number of queued messages.
func (b *Bus) Pending() int {
	b.m.Lock()
	defer b.m.Unlock()
	return len(b.queue)
}

// Close drops queued messages and rejects further posts.
func (b *Bus) Close() {
	b.m.Lock()
	b.closed = true
	b.queue = nil
	b.m.Unlock()
}
